package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/keeper-crm/keeper-back/internal/config"
	"github.com/keeper-crm/keeper-back/internal/db"
	"github.com/keeper-crm/keeper-back/internal/service"
	"github.com/keeper-crm/keeper-back/internal/storage"
)

const signedURLTTL = 15 * time.Minute

type (
	CredentialsReq struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required,min=8"`
	}

	ContactReq struct {
		FirstName   string  `json:"first_name" validate:"required"`
		LastName    string  `json:"last_name" validate:"required"`
		Email       *string `json:"email"`
		Phone       *string `json:"phone"`
		Company     string  `json:"company" validate:"required"`
		Position    string  `json:"position" validate:"required"`
		Location    string  `json:"location" validate:"required"`
		URL         *string `json:"url"`
		Notes       *string `json:"notes"`
		ConnectedOn *string `json:"connected_on"`
	}

	ContactResp struct {
		ID          uint64    `json:"id"`
		FirstName   string    `json:"first_name"`
		LastName    string    `json:"last_name"`
		Email       *string   `json:"email,omitempty"`
		Phone       *string   `json:"phone,omitempty"`
		Company     string    `json:"company"`
		Position    string    `json:"position"`
		Location    string    `json:"location"`
		URL         *string   `json:"url,omitempty"`
		Notes       *string   `json:"notes,omitempty"`
		ConnectedOn *string   `json:"connected_on,omitempty"`
		CreatedAt   time.Time `json:"created_at"`
		UpdatedAt   time.Time `json:"updated_at"`
	}

	TagReq struct {
		Name  string `json:"name" validate:"required"`
		Color string `json:"color" validate:"required"`
	}

	TagResp struct {
		ID    uint64 `json:"id"`
		Name  string `json:"name"`
		Color string `json:"color"`
	}

	TagDeleteResp struct {
		AffectedContacts int64 `json:"affected_contacts"`
	}

	TagSetReq struct {
		Tags []uint64 `json:"tags"`
	}

	ToggleResp struct {
		Attached bool `json:"attached"`
	}

	InteractionReq struct {
		Type  string  `json:"type" validate:"required"`
		Date  string  `json:"date" validate:"required"`
		Notes *string `json:"notes"`
	}

	AttachmentResp struct {
		ID         string    `json:"id"`
		Name       string    `json:"name"`
		MimeType   string    `json:"mime_type"`
		Size       int64     `json:"size"`
		URL        string    `json:"url"`
		UploadedAt time.Time `json:"uploaded_at"`
	}

	InteractionResp struct {
		ID              uint64             `json:"id"`
		ContactID       uint64             `json:"contact_id"`
		Type            string             `json:"type"`
		Date            time.Time          `json:"date"`
		Notes           *string            `json:"notes,omitempty"`
		HistoricalTags  []db.HistoricalTag `json:"historical_tags"`
		FileAttachments []AttachmentResp   `json:"file_attachments"`
		CreatedAt       time.Time          `json:"created_at"`
	}

	AttachResult struct {
		Attachments []AttachmentResp `json:"attachments"`
		Failed      int              `json:"failed"`
	}

	ReminderReq struct {
		ContactID uint64  `json:"contact_id"`
		Title     string  `json:"title" validate:"required"`
		Date      string  `json:"date" validate:"required"`
		Channel   string  `json:"channel" validate:"required"`
		Notes     *string `json:"notes"`
	}

	ReminderResp struct {
		ID        uint64    `json:"id"`
		ContactID uint64    `json:"contact_id"`
		Title     string    `json:"title"`
		Date      time.Time `json:"date"`
		Channel   string    `json:"channel"`
		Notes     *string   `json:"notes,omitempty"`
		IsActive  bool      `json:"is_active"`
		CreatedAt time.Time `json:"created_at"`
		UpdatedAt time.Time `json:"updated_at"`
	}

	InteractionDraftResp struct {
		Type  string    `json:"type"`
		Date  time.Time `json:"date"`
		Notes string    `json:"notes"`
	}

	CompleteResp struct {
		Reminder ReminderResp         `json:"reminder"`
		Draft    InteractionDraftResp `json:"interaction_draft"`
	}

	CalendarLinkResp struct {
		URL string `json:"url"`
	}

	CustomValidator struct {
		validator *validator.Validate
	}

	HTTPServer struct {
		db           *gorm.DB
		auth         *service.Auth
		contacts     *service.Contacts
		tags         *service.Tags
		joins        *service.JoinManager
		interactions *service.Interactions
		reminders    *service.Reminders
		importer     *service.Importer
		files        *storage.FileStore
		logger       *zap.SugaredLogger
	}
)

func NewHTTPServer(
	lc fx.Lifecycle,
	cfg *config.Config,
	g *gorm.DB,
	auth *service.Auth,
	contacts *service.Contacts,
	tags *service.Tags,
	joins *service.JoinManager,
	interactions *service.Interactions,
	reminders *service.Reminders,
	importer *service.Importer,
	files *storage.FileStore,
	logger *zap.SugaredLogger,
) *HTTPServer {
	e := echo.New()

	instance := HTTPServer{
		db:           g,
		auth:         auth,
		contacts:     contacts,
		tags:         tags,
		joins:        joins,
		interactions: interactions,
		reminders:    reminders,
		importer:     importer,
		files:        files,
		logger:       logger,
	}

	e.POST("/auth/register", instance.Register)
	e.POST("/auth/login", instance.Login)

	contactG := e.Group("/contact")
	contactG.GET("", instance.ContactList)
	contactG.POST("", instance.ContactCreate)
	contactG.GET("/import/template", instance.ImportTemplate)
	contactG.POST("/import", instance.ContactImport)
	contactG.GET("/:id", instance.ContactGet)
	contactG.PATCH("/:id", instance.ContactUpdate)
	contactG.DELETE("/:id", instance.ContactDelete)
	contactG.PUT("/:id/tags", instance.ContactTagsReplace)
	contactG.POST("/:id/tags/:tagID", instance.ContactTagToggle)
	contactG.GET("/:id/interaction", instance.InteractionList)
	contactG.POST("/:id/interaction", instance.InteractionCreate)
	contactG.GET("/:id/reminder", instance.ReminderListByContact)

	tagG := e.Group("/tag")
	tagG.GET("", instance.TagList)
	tagG.POST("", instance.TagCreate)
	tagG.PATCH("/:id", instance.TagUpdate)
	tagG.DELETE("/:id", instance.TagDelete)

	interactionG := e.Group("/interaction")
	interactionG.PATCH("/:id", instance.InteractionUpdate)
	interactionG.DELETE("/:id", instance.InteractionDelete)
	interactionG.POST("/:id/attachment", instance.AttachmentUpload)
	interactionG.DELETE("/:id/attachment/:attID", instance.AttachmentDelete)

	reminderG := e.Group("/reminder")
	reminderG.GET("", instance.ReminderList)
	reminderG.POST("", instance.ReminderCreate)
	reminderG.PATCH("/:id", instance.ReminderUpdate)
	reminderG.DELETE("/:id", instance.ReminderDelete)
	reminderG.POST("/:id/complete", instance.ReminderComplete)
	reminderG.GET("/:id/calendar-link", instance.ReminderCalendarLink)

	e.GET("/files/:key", instance.FileServe)

	e.GET("/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") })

	e.Use(middleware.CORS())
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyDumpWithConfig(middleware.BodyDumpConfig{
		Skipper: func(c echo.Context) bool {
			return !strings.HasPrefix(c.Path(), "/auth/")
		},
		Handler: func(c echo.Context, reqBody, resBody []byte) {
			logger.Debugw("auth request", "path", c.Path(), "body", string(censorBody(reqBody)))
		},
	}))

	e.Use(instance.AuthMiddleware)

	e.Validator = &CustomValidator{validator: validator.New()}

	echo.NotFoundHandler = func(c echo.Context) error {
		return c.NoContent(http.StatusNotFound)
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				listen := cfg.Host + ":" + cfg.Port
				if err := e.Start(listen); err != nil && err != http.ErrServerClosed {
					e.Logger.Fatal("shutting down the server")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Stopping HTTP server.")
			return e.Shutdown(ctx)
		},
	})

	return &instance
}

func (s *HTTPServer) Register(c echo.Context) error {
	req := CredentialsReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	token, err := s.auth.Register(req.Email, req.Password)
	if err != nil {
		return mapError(err)
	}
	resp := struct {
		Token string `json:"token"`
	}{
		Token: token,
	}
	return c.JSON(http.StatusOK, &resp)
}

func (s *HTTPServer) Login(c echo.Context) error {
	req := CredentialsReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	token, err := s.auth.Login(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrLoginUserNotFound) || errors.Is(err, service.ErrLoginPasswordDoesNotMatch) {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
		}
		return err
	}
	resp := struct {
		Token string `json:"token"`
	}{
		Token: token,
	}
	return c.JSON(http.StatusOK, &resp)
}

func (s *HTTPServer) ContactList(c echo.Context) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	tagIDs, err := parseIDList(c.QueryParam("tags"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid query param 'tags'")
	}

	q := service.ContactQuery{
		Text:   c.QueryParam("q"),
		TagIDs: tagIDs,
		Sort:   service.SortField(c.QueryParam("sort")),
		Dir:    service.SortDirection(c.QueryParam("dir")),
	}

	contacts, err := s.contacts.List(user, q)
	if err != nil {
		return mapError(err)
	}

	resp := make([]ContactResp, len(contacts))
	for i := range contacts {
		resp[i] = contactResp(&contacts[i])
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *HTTPServer) ContactGet(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	model, err := s.contacts.Get(user, id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, contactResp(model))
}

func (s *HTTPServer) ContactCreate(c echo.Context) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	req := ContactReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}
	in, err := contactInput(req)
	if err != nil {
		return err
	}

	model, err := s.contacts.Create(user, in)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, contactResp(model))
}

func (s *HTTPServer) ContactUpdate(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	req := ContactReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}
	in, err := contactInput(req)
	if err != nil {
		return err
	}

	model, err := s.contacts.Update(user, id, in)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, contactResp(model))
}

func (s *HTTPServer) ContactDelete(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	if err := s.contacts.Delete(user, id); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *HTTPServer) ContactTagsReplace(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	req := TagSetReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	if err := s.joins.Replace(user, id, req.Tags); err != nil {
		return mapError(err)
	}

	tags, err := s.joins.TagsForContact(user, id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, tagResps(tags))
}

func (s *HTTPServer) ContactTagToggle(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	tagID, err := GetAndParseParam(c, "tagID")
	if err != nil {
		return err
	}
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	attached, err := s.joins.Toggle(user, id, tagID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, ToggleResp{Attached: attached})
}

func (s *HTTPServer) ContactImport(c echo.Context) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "missing form file 'file'")
	}
	f, err := fileHeader.Open()
	if err != nil {
		return errors.Wrap(err, "open upload")
	}
	defer f.Close()

	summary, err := s.importer.Import(user, f)
	if err != nil {
		if errors.Is(err, service.ErrMissingColumns) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return mapError(err)
	}
	return c.JSON(http.StatusOK, summary)
}

func (s *HTTPServer) ImportTemplate(c echo.Context) error {
	return c.String(http.StatusOK, strings.Join(service.ImportHeader(), ",")+"\n")
}

func (s *HTTPServer) TagList(c echo.Context) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	counts, err := s.tags.ListWithCounts(user)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, counts)
}

func (s *HTTPServer) TagCreate(c echo.Context) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	req := TagReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	model, err := s.tags.Create(user, req.Name, req.Color)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, TagResp{
		ID:    model.ID,
		Name:  model.Name,
		Color: model.Color,
	})
}

func (s *HTTPServer) TagUpdate(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	req := TagReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	model, err := s.tags.Update(user, id, req.Name, req.Color)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, TagResp{
		ID:    model.ID,
		Name:  model.Name,
		Color: model.Color,
	})
}

func (s *HTTPServer) TagDelete(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	affected, err := s.tags.Delete(user, id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, TagDeleteResp{AffectedContacts: affected})
}

func (s *HTTPServer) InteractionList(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	interactions, err := s.interactions.ListByContact(user, id)
	if err != nil {
		return mapError(err)
	}

	resp := make([]InteractionResp, len(interactions))
	for i := range interactions {
		resp[i] = s.interactionResp(&interactions[i])
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *HTTPServer) InteractionCreate(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	req := InteractionReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}
	in, err := interactionInput(req)
	if err != nil {
		return err
	}

	model, err := s.interactions.Create(user, id, in)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, s.interactionResp(model))
}

func (s *HTTPServer) InteractionUpdate(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	req := InteractionReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}
	in, err := interactionInput(req)
	if err != nil {
		return err
	}

	model, err := s.interactions.Update(user, id, in)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, s.interactionResp(model))
}

func (s *HTTPServer) InteractionDelete(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	if err := s.interactions.Delete(user, id); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *HTTPServer) AttachmentUpload(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	form, err := c.MultipartForm()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "expected multipart form")
	}
	fileHeaders := form.File["files"]
	if len(fileHeaders) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "missing form files 'files'")
	}

	uploads := make([]service.Upload, 0, len(fileHeaders))
	opened := make([]func() error, 0, len(fileHeaders))
	for _, fh := range fileHeaders {
		f, err := fh.Open()
		if err != nil {
			s.logger.Warnw("open multipart file", "name", fh.Filename, "error", err)
			continue
		}
		opened = append(opened, f.Close)
		uploads = append(uploads, service.Upload{
			Name:     fh.Filename,
			MimeType: fh.Header.Get("Content-Type"),
			Reader:   f,
		})
	}
	defer func() {
		for _, closeF := range opened {
			_ = closeF()
		}
	}()

	atts, failed, err := s.interactions.AttachFiles(c.Request().Context(), user, id, uploads)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, AttachResult{
		Attachments: s.attachmentResps(atts),
		Failed:      failed + (len(fileHeaders) - len(uploads)),
	})
}

func (s *HTTPServer) AttachmentDelete(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	attID, err := GetParam(c, "attID")
	if err != nil {
		return err
	}
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	if err := s.interactions.RemoveAttachment(user, id, attID); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *HTTPServer) ReminderList(c echo.Context) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	reminders, err := s.reminders.List(user)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, reminderResps(reminders))
}

func (s *HTTPServer) ReminderListByContact(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	reminders, err := s.reminders.ListByContact(user, id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, reminderResps(reminders))
}

func (s *HTTPServer) ReminderCreate(c echo.Context) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	req := ReminderReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}
	if req.ContactID == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "missing contact_id")
	}
	in, err := reminderInput(req)
	if err != nil {
		return err
	}

	model, err := s.reminders.Create(user, req.ContactID, in)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, reminderResp(model))
}

func (s *HTTPServer) ReminderUpdate(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	req := ReminderReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}
	in, err := reminderInput(req)
	if err != nil {
		return err
	}

	model, err := s.reminders.Update(user, id, in)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, reminderResp(model))
}

func (s *HTTPServer) ReminderDelete(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	if err := s.reminders.Delete(user, id); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *HTTPServer) ReminderComplete(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	model, err := s.reminders.Complete(user, id)
	if err != nil {
		return mapError(err)
	}

	draft := service.InteractionDraft(model, time.Now())
	return c.JSON(http.StatusOK, CompleteResp{
		Reminder: reminderResp(model),
		Draft: InteractionDraftResp{
			Type:  draft.Type,
			Date:  draft.Date,
			Notes: *draft.Notes,
		},
	})
}

func (s *HTTPServer) ReminderCalendarLink(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	model, err := s.reminders.Get(user, id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, CalendarLinkResp{URL: service.CalendarLink(model)})
}

func (s *HTTPServer) FileServe(c echo.Context) error {
	key := c.Param("key")
	exp, err := strconv.ParseInt(c.QueryParam("exp"), 10, 64)
	if err != nil {
		return c.NoContent(http.StatusForbidden)
	}
	if !s.files.Verify(key, exp, c.QueryParam("sig")) {
		return c.NoContent(http.StatusForbidden)
	}
	return c.File(s.files.Path(key))
}

func (s *HTTPServer) AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		switch c.Path() {
		case "/auth/register", "/auth/login", "/ping", "/files/:key":
			return next(c)
		}
		token := ""
		for key, values := range c.Request().Header {
			if strings.ToLower(key) == "x-token" {
				token = values[0]
				break
			}
		}
		if token == "" {
			return c.NoContent(http.StatusUnauthorized)
		}
		user := db.User{}
		res := s.db.Where("token = ?", token).First(&user)
		if res.Error != nil {
			c.Logger().Error(errors.Wrap(res.Error, "find user in db"))
			return c.NoContent(http.StatusUnauthorized)
		}

		c.Set("user", &user)
		return next(c)
	}
}

func (s *HTTPServer) interactionResp(model *db.Interaction) InteractionResp {
	return InteractionResp{
		ID:              model.ID,
		ContactID:       model.ContactID,
		Type:            model.Type,
		Date:            model.Date,
		Notes:           model.Notes,
		HistoricalTags:  s.interactions.HistoricalTags(model),
		FileAttachments: s.attachmentResps(s.interactions.Attachments(model)),
		CreatedAt:       model.CreatedAt,
	}
}

func (s *HTTPServer) attachmentResps(atts []db.FileAttachment) []AttachmentResp {
	resp := make([]AttachmentResp, len(atts))
	for i := range atts {
		signed, err := s.files.SignedURL(atts[i].Key, signedURLTTL)
		if err != nil {
			s.logger.Warnw("sign attachment url", "key", atts[i].Key, "error", err)
		}
		resp[i] = AttachmentResp{
			ID:         atts[i].ID,
			Name:       atts[i].Name,
			MimeType:   atts[i].MimeType,
			Size:       atts[i].Size,
			URL:        signed,
			UploadedAt: atts[i].UploadedAt,
		}
	}
	return resp
}

////////

func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func BindAndValidate(c echo.Context, v interface{}) error {
	var err error
	if err = c.Bind(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err = c.Validate(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func GetUserFromContext(c echo.Context) (*db.User, error) {
	user, _ := c.Get("user").(*db.User)
	if user == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "no user in context")
	}
	return user, nil
}

func GetParam(c echo.Context, name string) (string, error) {
	value := c.Param(name)
	if value == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, "invalid path param '"+name+"'")
	}
	return value, nil
}

func GetAndParseParam(c echo.Context, name string) (uint64, error) {
	v, e := GetParam(c, name)
	if e != nil {
		return 0, e
	}
	vv, e := strconv.ParseUint(v, 10, 64)
	if e != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid path param '"+name+"'")
	}
	return vv, nil
}

func mapError(err error) error {
	vErr := &service.ValidationError{}
	if errors.As(err, &vErr) {
		return echo.NewHTTPError(http.StatusBadRequest, vErr.Error())
	}
	if errors.Is(err, service.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return err
}

func parseIDList(raw string) ([]uint64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]uint64, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseUint(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, echo.NewHTTPError(http.StatusBadRequest, "invalid date: "+raw)
	}
	return t, nil
}

func contactInput(req ContactReq) (service.ContactInput, error) {
	in := service.ContactInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		Company:   req.Company,
		Position:  req.Position,
		Location:  req.Location,
		URL:       req.URL,
		Notes:     req.Notes,
	}
	if req.ConnectedOn != nil && *req.ConnectedOn != "" {
		t, err := parseDate(*req.ConnectedOn)
		if err != nil {
			return in, err
		}
		in.ConnectedOn = &t
	}
	return in, nil
}

func interactionInput(req InteractionReq) (service.InteractionInput, error) {
	t, err := parseDate(req.Date)
	if err != nil {
		return service.InteractionInput{}, err
	}
	return service.InteractionInput{
		Type:  req.Type,
		Date:  t,
		Notes: req.Notes,
	}, nil
}

func reminderInput(req ReminderReq) (service.ReminderInput, error) {
	t, err := parseDate(req.Date)
	if err != nil {
		return service.ReminderInput{}, err
	}
	return service.ReminderInput{
		Title:   req.Title,
		Date:    t,
		Channel: req.Channel,
		Notes:   req.Notes,
	}, nil
}

func contactResp(model *db.Contact) ContactResp {
	var connectedOn *string
	if model.ConnectedOn != nil {
		v := model.ConnectedOn.Format("2006-01-02")
		connectedOn = &v
	}
	return ContactResp{
		ID:          model.ID,
		FirstName:   model.FirstName,
		LastName:    model.LastName,
		Email:       model.Email,
		Phone:       model.Phone,
		Company:     model.Company,
		Position:    model.Position,
		Location:    model.Location,
		URL:         model.URL,
		Notes:       model.Notes,
		ConnectedOn: connectedOn,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

func tagResps(tags []db.Tag) []TagResp {
	resp := make([]TagResp, len(tags))
	for i := range tags {
		resp[i] = TagResp{
			ID:    tags[i].ID,
			Name:  tags[i].Name,
			Color: tags[i].Color,
		}
	}
	return resp
}

func reminderResp(model *db.Reminder) ReminderResp {
	return ReminderResp{
		ID:        model.ID,
		ContactID: model.ContactID,
		Title:     model.Title,
		Date:      model.Date,
		Channel:   model.Channel,
		Notes:     model.Notes,
		IsActive:  model.IsActive,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

func reminderResps(reminders []db.Reminder) []ReminderResp {
	resp := make([]ReminderResp, len(reminders))
	for i := range reminders {
		resp[i] = reminderResp(&reminders[i])
	}
	return resp
}

func censorBody(b []byte) []byte {
	body := map[string]interface{}{}
	if err := json.Unmarshal(b, &body); err != nil {
		return b
	}
	if _, ok := body["password"]; ok {
		body["password"] = "$censored"
	}
	out, err := json.Marshal(body)
	if err != nil {
		return b
	}
	return out
}
