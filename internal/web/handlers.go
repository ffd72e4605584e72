package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/quietpieces/ya-note/internal/auth"
	"github.com/quietpieces/ya-note/internal/errs"
	"github.com/quietpieces/ya-note/internal/notes"
	"github.com/quietpieces/ya-note/internal/obs"
)

// WebHandler provides HTTP handlers for web UI pages.
type WebHandler struct {
	renderer       *Renderer
	notesService   *notes.Service
	userService    *auth.UserService
	sessionService *auth.SessionService
	secureCookies  bool
}

// NewWebHandler creates a new web handler.
func NewWebHandler(
	renderer *Renderer,
	notesService *notes.Service,
	userService *auth.UserService,
	sessionService *auth.SessionService,
	secureCookies bool,
) *WebHandler {
	return &WebHandler{
		renderer:       renderer,
		notesService:   notesService,
		userService:    userService,
		sessionService: sessionService,
		secureCookies:  secureCookies,
	}
}

// RegisterRoutes registers all web UI routes on the given mux.
func (h *WebHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	// Landing page
	mux.Handle("GET /{$}", authMiddleware.OptionalAuth(http.HandlerFunc(h.HandleHome)))

	// Notes CRUD (auth required - redirect to login)
	mux.Handle("GET /notes/{$}", authMiddleware.RequireAuth(http.HandlerFunc(h.HandleNotesList)))
	mux.Handle("GET /add/{$}", authMiddleware.RequireAuth(http.HandlerFunc(h.HandleAddPage)))
	mux.Handle("POST /add/{$}", authMiddleware.RequireAuth(http.HandlerFunc(h.HandleAddSubmit)))
	mux.Handle("GET /note/{slug}/{$}", authMiddleware.RequireAuth(http.HandlerFunc(h.HandleNoteDetail)))
	mux.Handle("GET /edit/{slug}/{$}", authMiddleware.RequireAuth(http.HandlerFunc(h.HandleEditPage)))
	mux.Handle("POST /edit/{slug}/{$}", authMiddleware.RequireAuth(http.HandlerFunc(h.HandleEditSubmit)))
	mux.Handle("GET /delete/{slug}/{$}", authMiddleware.RequireAuth(http.HandlerFunc(h.HandleDeletePage)))
	mux.Handle("POST /delete/{slug}/{$}", authMiddleware.RequireAuth(http.HandlerFunc(h.HandleDeleteSubmit)))
	mux.Handle("GET /done/{$}", authMiddleware.RequireAuth(http.HandlerFunc(h.HandleDone)))

	// Auth pages. Logout is POST-only: registering no GET handler makes
	// the mux answer GET /users/logout/ with 405.
	mux.Handle("GET /users/login/{$}", authMiddleware.OptionalAuth(http.HandlerFunc(h.HandleLoginPage)))
	mux.HandleFunc("POST /users/login/{$}", h.HandleLoginSubmit)
	mux.Handle("GET /users/signup/{$}", authMiddleware.OptionalAuth(http.HandlerFunc(h.HandleSignupPage)))
	mux.HandleFunc("POST /users/signup/{$}", h.HandleSignupSubmit)
	mux.HandleFunc("POST /users/logout/{$}", h.HandleLogout)
}

// PageData contains common data passed to all templates.
type PageData struct {
	Title        string
	User         *auth.User
	FlashMessage string
	FlashType    string // "success", "error", "info"
	Error        string
}

// NotesListData contains data for the notes list page.
type NotesListData struct {
	PageData
	Notes []notes.Note
}

// NoteDetailData contains data for the note detail and delete pages.
type NoteDetailData struct {
	PageData
	Note *notes.Note
}

// NoteFormData contains data for the add/edit note form.
type NoteFormData struct {
	PageData
	Heading   string
	Action    string
	NoteTitle string
	Text      string
	Slug      string
	ShowSlug  bool
	Errors    notes.FieldErrors
}

// AuthFormData contains data for the login and signup forms.
type AuthFormData struct {
	PageData
	Username string
	Next     string
}

// currentUser resolves the authenticated user for template display.
// Returns nil for anonymous requests.
func (h *WebHandler) currentUser(r *http.Request) *auth.User {
	userID := auth.GetUserID(r.Context())
	if userID == "" {
		return nil
	}
	user, err := h.userService.GetByID(r.Context(), userID)
	if err != nil {
		return &auth.User{ID: userID}
	}
	return user
}

func (h *WebHandler) render(w http.ResponseWriter, r *http.Request, name string, data interface{}) {
	if err := h.renderer.Render(w, name, data); err != nil {
		obs.From(r.Context()).Error("render_failed", "template", name, "error", err.Error())
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

// renderNoteError maps a notes service error to an error page.
func (h *WebHandler) renderNoteError(w http.ResponseWriter, r *http.Request, err error) {
	if errs.IsNotFound(err) {
		h.renderer.RenderError(w, http.StatusNotFound, "Note not found")
		return
	}
	obs.From(r.Context()).Error("note_operation_failed", "error", err.Error())
	h.renderer.RenderError(w, http.StatusInternalServerError, "Something went wrong")
}

// Handler implementations

// HandleHome handles GET / - shows the landing page.
func (h *WebHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	data := PageData{
		Title: "Notes",
		User:  h.currentUser(r),
	}
	h.render(w, r, "home.html", data)
}

// HandleNotesList handles GET /notes/ - lists the user's own notes in
// creation order.
func (h *WebHandler) HandleNotesList(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserID(r.Context())

	list, err := h.notesService.ListOwnedBy(r.Context(), userID)
	if err != nil {
		h.renderNoteError(w, r, err)
		return
	}

	data := NotesListData{
		PageData: PageData{
			Title: "My Notes",
			User:  h.currentUser(r),
		},
		Notes: list,
	}
	h.render(w, r, "notes/list.html", data)
}

// HandleAddPage handles GET /add/ - shows the new note form.
func (h *WebHandler) HandleAddPage(w http.ResponseWriter, r *http.Request) {
	data := NoteFormData{
		PageData: PageData{
			Title: "New Note",
			User:  h.currentUser(r),
		},
		Heading:  "New Note",
		Action:   "/add/",
		ShowSlug: true,
	}
	h.render(w, r, "notes/form.html", data)
}

// HandleAddSubmit handles POST /add/ - creates a note and redirects to
// the done page. Validation problems re-render the form with field
// errors and leave storage untouched.
func (h *WebHandler) HandleAddSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.RenderError(w, http.StatusBadRequest, "Invalid form data")
		return
	}

	userID := auth.GetUserID(r.Context())
	params := notes.CreateNoteParams{
		Title: r.FormValue("title"),
		Text:  r.FormValue("text"),
		Slug:  r.FormValue("slug"),
	}

	_, err := h.notesService.Create(r.Context(), userID, params)
	if err != nil {
		var fieldErrs notes.FieldErrors
		if errors.As(err, &fieldErrs) {
			data := NoteFormData{
				PageData: PageData{
					Title: "New Note",
					User:  h.currentUser(r),
				},
				Heading:   "New Note",
				Action:    "/add/",
				NoteTitle: params.Title,
				Text:      params.Text,
				Slug:      params.Slug,
				ShowSlug:  true,
				Errors:    fieldErrs,
			}
			h.render(w, r, "notes/form.html", data)
			return
		}
		h.renderNoteError(w, r, err)
		return
	}

	http.Redirect(w, r, "/done/", http.StatusFound)
}

// HandleNoteDetail handles GET /note/{slug}/ - shows a note. Notes
// owned by other users answer 404, same as absent slugs.
func (h *WebHandler) HandleNoteDetail(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserID(r.Context())
	slug := r.PathValue("slug")

	note, err := h.notesService.GetOwnedBy(r.Context(), userID, slug)
	if err != nil {
		h.renderNoteError(w, r, err)
		return
	}

	data := NoteDetailData{
		PageData: PageData{
			Title: note.Title,
			User:  h.currentUser(r),
		},
		Note: note,
	}
	h.render(w, r, "notes/detail.html", data)
}

// HandleEditPage handles GET /edit/{slug}/ - shows the edit form.
func (h *WebHandler) HandleEditPage(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserID(r.Context())
	slug := r.PathValue("slug")

	note, err := h.notesService.GetOwnedBy(r.Context(), userID, slug)
	if err != nil {
		h.renderNoteError(w, r, err)
		return
	}

	data := NoteFormData{
		PageData: PageData{
			Title: "Edit Note",
			User:  h.currentUser(r),
		},
		Heading:   "Edit Note",
		Action:    "/edit/" + note.Slug + "/",
		NoteTitle: note.Title,
		Text:      note.Text,
		Slug:      note.Slug,
	}
	h.render(w, r, "notes/form.html", data)
}

// HandleEditSubmit handles POST /edit/{slug}/ - updates title and text.
// The slug is fixed at creation; any submitted slug value is ignored.
func (h *WebHandler) HandleEditSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.RenderError(w, http.StatusBadRequest, "Invalid form data")
		return
	}

	userID := auth.GetUserID(r.Context())
	slug := r.PathValue("slug")
	params := notes.UpdateNoteParams{
		Title: r.FormValue("title"),
		Text:  r.FormValue("text"),
	}

	_, err := h.notesService.Update(r.Context(), userID, slug, params)
	if err != nil {
		var fieldErrs notes.FieldErrors
		if errors.As(err, &fieldErrs) {
			data := NoteFormData{
				PageData: PageData{
					Title: "Edit Note",
					User:  h.currentUser(r),
				},
				Heading:   "Edit Note",
				Action:    "/edit/" + slug + "/",
				NoteTitle: params.Title,
				Text:      params.Text,
				Slug:      slug,
				Errors:    fieldErrs,
			}
			h.render(w, r, "notes/form.html", data)
			return
		}
		h.renderNoteError(w, r, err)
		return
	}

	http.Redirect(w, r, "/done/", http.StatusFound)
}

// HandleDeletePage handles GET /delete/{slug}/ - shows the confirmation page.
func (h *WebHandler) HandleDeletePage(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserID(r.Context())
	slug := r.PathValue("slug")

	note, err := h.notesService.GetOwnedBy(r.Context(), userID, slug)
	if err != nil {
		h.renderNoteError(w, r, err)
		return
	}

	data := NoteDetailData{
		PageData: PageData{
			Title: "Delete Note",
			User:  h.currentUser(r),
		},
		Note: note,
	}
	h.render(w, r, "notes/delete.html", data)
}

// HandleDeleteSubmit handles POST /delete/{slug}/ - deletes the note.
func (h *WebHandler) HandleDeleteSubmit(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserID(r.Context())
	slug := r.PathValue("slug")

	if err := h.notesService.Delete(r.Context(), userID, slug); err != nil {
		h.renderNoteError(w, r, err)
		return
	}

	http.Redirect(w, r, "/done/", http.StatusFound)
}

// HandleDone handles GET /done/ - the post-mutation success page.
func (h *WebHandler) HandleDone(w http.ResponseWriter, r *http.Request) {
	data := PageData{
		Title:        "Done",
		User:         h.currentUser(r),
		FlashMessage: "All set!",
		FlashType:    "success",
	}
	h.render(w, r, "done.html", data)
}

// HandleLoginPage handles GET /users/login/ - shows the login page.
func (h *WebHandler) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	data := AuthFormData{
		PageData: PageData{
			Title: "Sign In",
			User:  h.currentUser(r),
		},
		Next: r.URL.Query().Get("next"),
	}
	h.render(w, r, "users/login.html", data)
}

// HandleLoginSubmit handles POST /users/login/ - verifies credentials
// and starts a session.
func (h *WebHandler) HandleLoginSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.RenderError(w, http.StatusBadRequest, "Invalid form data")
		return
	}

	username := r.FormValue("username")
	password := r.FormValue("password")
	next := r.FormValue("next")

	user, err := h.userService.Login(r.Context(), username, password)
	if err != nil {
		data := AuthFormData{
			PageData: PageData{
				Title: "Sign In",
				Error: "Invalid username or password",
			},
			Username: username,
			Next:     next,
		}
		h.render(w, r, "users/login.html", data)
		return
	}

	sessionID, err := h.sessionService.Create(r.Context(), user.ID)
	if err != nil {
		obs.From(r.Context()).Error("session_create_failed", "error", err.Error())
		h.renderer.RenderError(w, http.StatusInternalServerError, "Failed to sign in")
		return
	}
	auth.SetCookie(w, sessionID, h.sessionService.Duration(), h.secureCookies)

	http.Redirect(w, r, safeNext(next), http.StatusFound)
}

// HandleSignupPage handles GET /users/signup/ - shows the signup page.
func (h *WebHandler) HandleSignupPage(w http.ResponseWriter, r *http.Request) {
	data := AuthFormData{
		PageData: PageData{
			Title: "Sign Up",
			User:  h.currentUser(r),
		},
	}
	h.render(w, r, "users/signup.html", data)
}

// HandleSignupSubmit handles POST /users/signup/ - creates an account
// and sends the user to the login page.
func (h *WebHandler) HandleSignupSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.RenderError(w, http.StatusBadRequest, "Invalid form data")
		return
	}

	username := r.FormValue("username")
	password := r.FormValue("password")

	_, err := h.userService.Signup(r.Context(), username, password)
	if err != nil {
		msg := "Failed to create account"
		switch {
		case errors.Is(err, auth.ErrUsernameTaken):
			msg = "That username is already taken"
		case errors.Is(err, auth.ErrInvalidUsername):
			msg = auth.ErrInvalidUsername.Error()
		case errors.Is(err, auth.ErrWeakPassword):
			msg = auth.ErrWeakPassword.Error()
		default:
			obs.From(r.Context()).Error("signup_failed", "error", err.Error())
		}
		data := AuthFormData{
			PageData: PageData{
				Title: "Sign Up",
				Error: msg,
			},
			Username: username,
		}
		h.render(w, r, "users/signup.html", data)
		return
	}

	http.Redirect(w, r, auth.LoginPath, http.StatusFound)
}

// HandleLogout handles POST /users/logout/ - ends the session.
func (h *WebHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	sessionID, err := auth.GetFromRequest(r)
	if err == nil {
		_ = h.sessionService.Delete(r.Context(), sessionID)
	}

	auth.ClearCookie(w, h.secureCookies)
	http.Redirect(w, r, "/", http.StatusFound)
}

// safeNext keeps post-login redirects on this site.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		return "/notes/"
	}
	return next
}
