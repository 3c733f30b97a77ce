package session

import (
	"encoding/gob"
	"fmt"
	"net/http"

	"github.com/gorilla/sessions"
)

// flashCookieName はフラッシュ通知用のCookie名。
const flashCookieName = "periodico_flash"

// Variant は通知の種類。
type Variant string

const (
	VariantSuccess     Variant = "success"
	VariantDestructive Variant = "destructive"
	VariantInfo        Variant = "info"
)

// Notice は次のページ表示で1回だけ出す通知。
type Notice struct {
	Title       string
	Description string
	Variant     Variant
}

func init() {
	gob.Register(Notice{})
}

// Flasher はフラッシュ通知をCookieに出し入れする。
type Flasher struct {
	store *sessions.CookieStore
}

// NewFlasher はFlasherを生成する。
func NewFlasher(opts CookieOptions) *Flasher {
	return &Flasher{store: newGorillaStore(opts)}
}

// Add は通知を追加する。
func (f *Flasher) Add(w http.ResponseWriter, r *http.Request, n Notice) error {
	sess, _ := f.store.Get(r, flashCookieName)
	sess.AddFlash(n)
	if err := sess.Save(r, w); err != nil {
		return fmt.Errorf("save flash: %w", err)
	}
	return nil
}

// Pop は保存されている通知を取り出して削除する。
func (f *Flasher) Pop(w http.ResponseWriter, r *http.Request) []Notice {
	sess, err := f.store.Get(r, flashCookieName)
	if err != nil {
		return nil
	}
	flashes := sess.Flashes()
	if len(flashes) == 0 {
		return nil
	}
	notices := make([]Notice, 0, len(flashes))
	for _, v := range flashes {
		if n, ok := v.(Notice); ok {
			notices = append(notices, n)
		}
	}
	_ = sess.Save(r, w)
	return notices
}
