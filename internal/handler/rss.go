package handler

import (
	"encoding/xml"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/periodico/internal/datelabel"
	"github.com/hitoshi/periodico/internal/feed"
	"github.com/hitoshi/periodico/internal/model"
)

// rssMaxItems はRSSに含める記事の最大数。
const rssMaxItems = 20

type rssDocument struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title       string    `xml:"title"`
	Link        string    `xml:"link"`
	Description string    `xml:"description"`
	Language    string    `xml:"language"`
	Items       []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string   `xml:"title"`
	Link        string   `xml:"link"`
	GUID        string   `xml:"guid"`
	Description string   `xml:"description"`
	Category    string   `xml:"category,omitempty"`
	PubDate     string   `xml:"pubDate,omitempty"`
	Enclosure   *rssFile `xml:"enclosure,omitempty"`
}

type rssFile struct {
	URL  string `xml:"url,attr"`
	Type string `xml:"type,attr"`
}

// RSS は最新の記事をRSS 2.0で返す。
// GET /rss.xml
func (h *FeedHandler) RSS(w http.ResponseWriter, r *http.Request) {
	pubs, err := h.publications(r.Context(), nil)
	if err != nil {
		h.logger.WarnContext(r.Context(), "RSS用の記事一覧の取得に失敗しました", slog.String("error", err.Error()))
		http.Error(w, "feed unavailable", http.StatusBadGateway)
		return
	}

	view := h.composer.Compose(pubs, nil, "", h.now())
	doc := rssDocument{
		Version: "2.0",
		Channel: rssChannel{
			Title:       "El Periódico",
			Link:        h.baseURL + "/",
			Description: "Últimas noticias",
			Language:    "es",
		},
	}
	for i, e := range view.Entries {
		if i == rssMaxItems {
			break
		}
		doc.Channel.Items = append(doc.Channel.Items, h.rssItem(e))
	}

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	_, _ = w.Write([]byte(xml.Header))
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		h.logger.ErrorContext(r.Context(), "RSSの書き出しに失敗しました", slog.String("error", err.Error()))
	}
}

func (h *FeedHandler) rssItem(e feed.Entry) rssItem {
	link := h.baseURL + e.Link
	item := rssItem{
		Title:       e.Publication.Title,
		Link:        link,
		GUID:        link,
		Description: e.Excerpt,
		Category:    e.CategoryName,
		PubDate:     rssDate(e.Publication),
	}
	if e.ImageURL != "" {
		item.Enclosure = &rssFile{URL: e.ImageURL, Type: "image/jpeg"}
	}
	return item
}

func rssDate(p model.Publication) string {
	t, ok := datelabel.Parse(p.Date, time.Local)
	if !ok {
		return ""
	}
	return t.Format(time.RFC1123Z)
}
