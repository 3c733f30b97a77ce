package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/periodico/internal/admin"
	"github.com/hitoshi/periodico/internal/backend"
	"github.com/hitoshi/periodico/internal/model"
	"github.com/hitoshi/periodico/internal/session"
)

// maxImageBytes はアップロードする画像の最大サイズ。
const maxImageBytes = 8 << 20

// crudMessages は保存・削除後の通知文言。
type crudMessages struct {
	created string
	updated string
	deleted string
}

// crudScreen は管理画面1つ分の設定。3つの画面は同じハンドラーをこの設定で使い分ける。
type crudScreen[T any, In any] struct {
	path  string
	title string
	noun  string
	page  string
	msgs  crudMessages

	ctrl    func(*admin.Screens) *admin.Controller[T, In]
	load    func(context.Context, *admin.Screens) error
	extra   func(*admin.Screens) any
	parse   func(*http.Request, session.State) (In, error)
	blank   func(*admin.Screens, time.Time) In
	toInput func(T) In
	label   func(T) string
}

// crudPage は管理画面のデータ。
type crudPage[T any, In any] struct {
	Items     []T
	Form      In
	EditingID *int
	Editing   *T
	Alert     *model.APIError
	Screen    any
}

// confirmPage は削除確認画面のデータ。
type confirmPage struct {
	Noun   string
	Label  string
	Action string
	Back   string
}

// AdminHandler は管理画面を扱う。画面の状態はセッションごとにWorkspaceに保持する。
type AdminHandler struct {
	workspace *admin.Workspace
	render    *Renderer
	logger    *slog.Logger
	now       func() time.Time

	users        crudScreen[model.User, backend.UserInput]
	categories   crudScreen[model.Category, backend.CategoryInput]
	publications crudScreen[model.Publication, backend.PublicationInput]
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(workspace *admin.Workspace, render *Renderer, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{
		workspace:    workspace,
		render:       render,
		logger:       logger,
		now:          time.Now,
		users:        usersScreen(),
		categories:   categoriesScreen(),
		publications: publicationsScreen(),
	}
}

// Routes は管理画面のルートを登録する。RequireAdminミドルウェアの内側で呼び出す。
func (h *AdminHandler) Routes(r chi.Router) {
	r.Get("/admin", h.Dashboard)
	mountScreen(r, h, h.users)
	mountScreen(r, h, h.categories)
	mountScreen(r, h, h.publications)
}

// Dashboard は管理画面のトップを表示する。
// GET /admin
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	h.render.Page(w, r, http.StatusOK, pageAdmin, "Panel", nil)
}

func mountScreen[T any, In any](r chi.Router, h *AdminHandler, s crudScreen[T, In]) {
	r.Get(s.path, listHandler(h, s))
	r.Post(s.path, saveHandler(h, s))
	r.Get(s.path+"/{id}/eliminar", confirmDeleteHandler(h, s))
	r.Post(s.path+"/{id}/eliminar", deleteHandler(h, s))
}

// screensFor はログイン中のセッションの画面状態を返す。
func (h *AdminHandler) screensFor(r *http.Request) (*admin.Screens, session.State) {
	st := session.FromContext(r.Context())
	key := st.ID
	if key == "" && st.User != nil {
		key = "user:" + strconv.Itoa(st.User.ID)
	}
	return h.workspace.Get(key), st
}

// listHandler は一覧と作成・編集フォームを表示する。
// 一覧は最初の表示時（または?recargar=1）にのみバックエンドから取得する。
func listHandler[T any, In any](h *AdminHandler, s crudScreen[T, In]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		screens, _ := h.screensFor(r)
		ctrl := s.ctrl(screens)

		page := crudPage[T, In]{}
		if !ctrl.Loaded() || r.URL.Query().Get("recargar") != "" {
			if err := s.load(r.Context(), screens); err != nil {
				h.logger.WarnContext(r.Context(), "一覧の取得に失敗しました",
					slog.String("screen", s.path),
					slog.String("error", err.Error()),
				)
				page.Alert = model.ToAPIError(err)
			}
		}
		page.Items = ctrl.Items()
		page.Screen = s.extra(screens)

		if id, ok := parseID(r.URL.Query().Get("editar")); ok {
			if item, found := ctrl.Find(id); found {
				page.EditingID = &id
				page.Editing = &item
				page.Form = s.toInput(item)
			}
		}
		if page.EditingID == nil {
			page.Form = s.blank(screens, h.now())
		}

		h.render.Page(w, r, http.StatusOK, s.page, s.title, page)
	}
}

// saveHandler はフォームを送信する。idがあれば更新、なければ作成。
// 失敗時は一覧を変更せず、入力値を保ったままフォームを再表示する。
func saveHandler[T any, In any](h *AdminHandler, s crudScreen[T, In]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		screens, st := h.screensFor(r)
		ctrl := s.ctrl(screens)

		var editingID *int
		if id, ok := parseID(r.FormValue("id")); ok {
			editingID = &id
		}

		in, err := s.parse(r, st)
		if err == nil {
			var outcome admin.SaveOutcome
			outcome, err = ctrl.Save(r.Context(), editingID, in)
			if err == nil {
				h.render.Notify(w, r, saveNotice(s.msgs, outcome))
				http.Redirect(w, r, s.path, http.StatusSeeOther)
				return
			}
		}

		h.logger.WarnContext(r.Context(), "保存に失敗しました",
			slog.String("screen", s.path),
			slog.String("error", err.Error()),
		)
		page := crudPage[T, In]{
			Items:     ctrl.Items(),
			Form:      in,
			EditingID: editingID,
			Alert:     model.ToAPIError(err),
			Screen:    s.extra(screens),
		}
		if editingID != nil {
			if item, ok := ctrl.Find(*editingID); ok {
				page.Editing = &item
			}
		}
		h.render.Page(w, r, failureStatus(err), s.page, s.title, page)
	}
}

// confirmDeleteHandler は削除の確認画面を表示する。
func confirmDeleteHandler[T any, In any](h *AdminHandler, s crudScreen[T, In]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(chi.URLParam(r, "id"))
		if !ok {
			h.render.Error(w, r, http.StatusNotFound, model.NewNotFoundError())
			return
		}
		screens, _ := h.screensFor(r)
		label := fmt.Sprintf("ID: %d", id)
		if item, found := s.ctrl(screens).Find(id); found {
			label = s.label(item)
		}
		h.render.Page(w, r, http.StatusOK, pageConfirmDelete, "Eliminar "+s.noun, confirmPage{
			Noun:   s.noun,
			Label:  label,
			Action: fmt.Sprintf("%s/%d/eliminar", s.path, id),
			Back:   s.path,
		})
	}
}

// deleteHandler は確認済みの削除を実行し、一覧へ戻る。
func deleteHandler[T any, In any](h *AdminHandler, s crudScreen[T, In]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(chi.URLParam(r, "id"))
		if !ok {
			h.render.Error(w, r, http.StatusNotFound, model.NewNotFoundError())
			return
		}
		screens, _ := h.screensFor(r)

		err := s.ctrl(screens).Delete(r.Context(), id, r.FormValue("confirmar") == "si")
		switch {
		case errors.Is(err, admin.ErrNotConfirmed):
		case err != nil:
			h.logger.WarnContext(r.Context(), "削除に失敗しました",
				slog.String("screen", s.path),
				slog.Int("id", id),
				slog.String("error", err.Error()),
			)
			apiErr := model.ToAPIError(err)
			h.render.Notify(w, r, session.Notice{
				Title:       "Error al eliminar",
				Description: apiErr.Message,
				Variant:     session.VariantDestructive,
			})
		default:
			h.render.Notify(w, r, session.Notice{Title: s.msgs.deleted, Variant: session.VariantSuccess})
		}
		http.Redirect(w, r, s.path, http.StatusSeeOther)
	}
}

func saveNotice(msgs crudMessages, outcome admin.SaveOutcome) session.Notice {
	switch outcome {
	case admin.OutcomeUpdated:
		return session.Notice{Title: msgs.updated, Variant: session.VariantSuccess}
	case admin.OutcomeCreatedNotListed:
		return session.Notice{
			Title:       msgs.created,
			Description: "No se pudo actualizar la lista. Usa Recargar.",
			Variant:     session.VariantInfo,
		}
	default:
		return session.Notice{Title: msgs.created, Variant: session.VariantSuccess}
	}
}

// failureStatus は保存失敗時のステータスコードを返す。
func failureStatus(err error) int {
	if ff, ok := model.AsFetchFailure(err); ok && ff.Kind == model.KindValidation {
		return http.StatusUnprocessableEntity
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return http.StatusBadRequest
	}
	return http.StatusBadGateway
}

func parseID(s string) (int, bool) {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func usersScreen() crudScreen[model.User, backend.UserInput] {
	return crudScreen[model.User, backend.UserInput]{
		path:  "/users",
		title: "Usuarios",
		noun:  "usuario",
		page:  pageUsers,
		msgs: crudMessages{
			created: "Usuario creado",
			updated: "Usuario actualizado",
			deleted: "Usuario eliminado",
		},
		ctrl:  func(s *admin.Screens) *admin.UserController { return s.Users },
		load:  func(ctx context.Context, s *admin.Screens) error { return s.Users.Load(ctx) },
		extra: func(*admin.Screens) any { return nil },
		parse: func(r *http.Request, _ session.State) (backend.UserInput, error) {
			return backend.UserInput{
				Name:     strings.TrimSpace(r.FormValue("nombre")),
				Phone:    strings.TrimSpace(r.FormValue("telefono")),
				Username: strings.TrimSpace(r.FormValue("nombreUsuario")),
				Password: r.FormValue("password"),
			}, nil
		},
		blank: func(*admin.Screens, time.Time) backend.UserInput { return backend.UserInput{} },
		toInput: func(u model.User) backend.UserInput {
			return backend.UserInput{Name: u.Name, Phone: string(u.Phone), Username: u.Username, Password: u.Password}
		},
		label: func(u model.User) string {
			if u.Username == "" {
				return u.Name
			}
			return u.Name + " (" + u.Username + ")"
		},
	}
}

func categoriesScreen() crudScreen[model.Category, backend.CategoryInput] {
	return crudScreen[model.Category, backend.CategoryInput]{
		path:  "/category",
		title: "Categorías",
		noun:  "categoría",
		page:  pageCategory,
		msgs: crudMessages{
			created: "Categoría creada",
			updated: "Categoría actualizada",
			deleted: "Categoría eliminada",
		},
		ctrl:  func(s *admin.Screens) *admin.CategoryController { return s.Categories },
		load:  func(ctx context.Context, s *admin.Screens) error { return s.Categories.Load(ctx) },
		extra: func(*admin.Screens) any { return nil },
		parse: func(r *http.Request, _ session.State) (backend.CategoryInput, error) {
			return backend.CategoryInput{Description: strings.TrimSpace(r.FormValue("descripcion"))}, nil
		},
		blank:   func(*admin.Screens, time.Time) backend.CategoryInput { return backend.CategoryInput{} },
		toInput: func(c model.Category) backend.CategoryInput { return backend.CategoryInput{Description: c.Description} },
		label:   func(c model.Category) string { return c.Description },
	}
}

func publicationsScreen() crudScreen[model.Publication, backend.PublicationInput] {
	return crudScreen[model.Publication, backend.PublicationInput]{
		path:  "/publicaciones",
		title: "Publicaciones",
		noun:  "publicación",
		page:  pagePublications,
		msgs: crudMessages{
			created: "Publicación creada",
			updated: "Publicación actualizada",
			deleted: "Publicación eliminada",
		},
		ctrl:  func(s *admin.Screens) *admin.PublicationController { return s.Publications.PublicationController },
		load:  func(ctx context.Context, s *admin.Screens) error { return s.Publications.Load(ctx) },
		extra: func(s *admin.Screens) any { return s.Publications },
		parse: parsePublicationForm,
		blank: func(s *admin.Screens, now time.Time) backend.PublicationInput {
			return backend.PublicationInput{
				Date:       now.Format(time.DateOnly),
				CategoryID: s.Publications.DefaultCategoryID(),
			}
		},
		toInput: func(p model.Publication) backend.PublicationInput {
			return backend.PublicationInput{
				Title:       p.Title,
				Description: p.Description,
				Date:        dateOnly(p.Date),
				CategoryID:  p.CategoryRef(),
				UserID:      p.IDUsuario,
			}
		},
		label: func(p model.Publication) string { return p.Title },
	}
}

// parsePublicationForm はmultipartフォームから記事の入力を組み立てる。
// Fechaが空の場合は今日、投稿者はログイン中のユーザー。画像は選択された場合のみ送る。
func parsePublicationForm(r *http.Request, st session.State) (backend.PublicationInput, error) {
	in := backend.PublicationInput{
		Title:       strings.TrimSpace(r.FormValue("titulo")),
		Description: r.FormValue("descripcion"),
		Date:        strings.TrimSpace(r.FormValue("fecha")),
	}
	if in.Date == "" {
		in.Date = time.Now().Format(time.DateOnly)
	}
	in.CategoryID, _ = strconv.Atoi(r.FormValue("idcategoria"))
	if st.User != nil {
		in.UserID = st.User.ID
	}

	file, header, err := r.FormFile("imagen")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return in, nil
	}
	if err != nil {
		return in, invalidImageError()
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxImageBytes+1))
	if err != nil || len(data) > maxImageBytes {
		return in, invalidImageError()
	}
	if len(data) > 0 {
		in.Image = &backend.ImageFile{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		}
	}
	return in, nil
}

func invalidImageError() *model.APIError {
	return &model.APIError{
		Code:     "INVALID_IMAGE",
		Message:  "No se pudo leer la imagen",
		Category: "validation",
		Action:   "Selecciona una imagen de hasta 8 MB.",
	}
}

// dateOnly は日付入力欄に入れるYYYY-MM-DD部分を返す。
func dateOnly(s string) string {
	if len(s) >= len(time.DateOnly) {
		return s[:len(time.DateOnly)]
	}
	return s
}
