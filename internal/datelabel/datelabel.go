// Package datelabel は記事の日付から表示用ラベルを生成し、新着順に並べ替える。
package datelabel

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// 表示ラベル
const (
	LabelToday     = "Subida hoy"
	LabelYesterday = "Ayer"
)

// monthNames はスペイン語の月名（小文字）。
var monthNames = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// zonedLayouts はタイムゾーン付きのISO形式。
var zonedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
}

// localLayouts はタイムゾーンなしのISO形式。ローカル時刻として解釈する。
var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Parse はISO形式の日付文字列を解釈する。
// タイムゾーンのない値はlocの時刻として扱う。
func Parse(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// LabelFor は日付文字列の表示ラベルを返す。
// nowと同じ暦日なら"Subida hoy"、前日なら"Ayer"、それ以外は"5 de marzo, 2024"形式。
// 解釈できない文字列はそのまま返す。
func LabelFor(s string, now time.Time) string {
	t, ok := Parse(s, now.Location())
	if !ok {
		return s
	}
	t = t.In(now.Location())

	switch {
	case sameDay(t, now):
		return LabelToday
	case sameDay(t, now.AddDate(0, 0, -1)):
		return LabelYesterday
	}
	return fmt.Sprintf("%d de %s, %d", t.Day(), monthNames[t.Month()-1], t.Year())
}

// IsToday は日付文字列がnowと同じ暦日かどうかを返す。
func IsToday(s string, now time.Time) bool {
	t, ok := Parse(s, now.Location())
	return ok && sameDay(t.In(now.Location()), now)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// SortByRecency は日付の新しい順に並べた新しいスライスを返す。
// 同じ日時の要素は入力順を保つ（安定ソート）。解釈できない日付は最も古いものとして扱う。
// 入力スライスは変更しない。
func SortByRecency[T any](items []T, dateOf func(T) string) []T {
	type keyed struct {
		item T
		at   time.Time
	}
	ks := make([]keyed, len(items))
	for i, it := range items {
		at, _ := Parse(dateOf(it), time.Local)
		ks[i] = keyed{item: it, at: at}
	}
	slices.SortStableFunc(ks, func(a, b keyed) int {
		return b.at.Compare(a.at)
	})

	out := make([]T, len(ks))
	for i, k := range ks {
		out[i] = k.item
	}
	return out
}
