package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/anmolarora1/em/application/commands"
	"github.com/anmolarora1/em/application/commands/bus"
	"github.com/anmolarora1/em/application/services"
	"github.com/anmolarora1/em/domain/core/entities"
	"github.com/anmolarora1/em/domain/core/valueobjects"
	"github.com/anmolarora1/em/pkg/common"
	pkgerrors "github.com/anmolarora1/em/pkg/errors"
	"github.com/anmolarora1/em/pkg/utils"
)

// maxBodyBytes bounds request bodies; imports are the largest
const maxBodyBytes = 8 << 20

// ThoughtService is the part of services.ThoughtService used by the REST API
type ThoughtService interface {
	Dispatch(ctx context.Context, cmd commands.Command) (commands.Result, error)
	ChildrenOf(ctx valueobjects.Context) ([]entities.ChildRef, error)
	PathOf(ctx valueobjects.Context) (valueobjects.Path, error)
	Lexeme(value string) (*entities.Lexeme, bool)
	Tree(ctx valueobjects.Context, depth int, includeMeta bool) ([]*services.TreeNode, error)
	Export(ctx valueobjects.Context, includeMeta bool) (string, error)
	Setting(name ...string) (string, bool)
	Theme() string
}

// ThoughtHandler handles thought-related HTTP requests
type ThoughtHandler struct {
	service ThoughtService
	errors  *pkgerrors.ErrorHandler
	logger  *zap.Logger
}

// NewThoughtHandler creates a new thought handler
func NewThoughtHandler(service ThoughtService, errorHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *ThoughtHandler {
	return &ThoughtHandler{
		service: service,
		errors:  errorHandler,
		logger:  logger,
	}
}

// Thought requests address thoughts by their context: the values from the root down to and
// including the thought. Ranks are resolved server-side.

// CreateThoughtRequest creates a thought next to or inside At. An empty At creates at the
// end of the root.
type CreateThoughtRequest struct {
	At                  []string `json:"at"`
	Value               string   `json:"value" validate:"max=10000"`
	InsertBefore        bool     `json:"insertBefore"`
	InsertNewSubthought bool     `json:"insertNewSubthought"`
	Rank                *float64 `json:"rank,omitempty"`
}

// EditThoughtRequest renames the thought at Thought to NewValue
type EditThoughtRequest struct {
	Thought  []string `json:"thought" validate:"required,min=1"`
	NewValue string   `json:"newValue" validate:"max=10000"`
}

// MoveThoughtRequest moves Thought under the Destination context at Rank
type MoveThoughtRequest struct {
	Thought     []string `json:"thought" validate:"required,min=1"`
	Destination []string `json:"destination"`
	Rank        float64  `json:"rank"`
}

// ThoughtRequest addresses one thought
type ThoughtRequest struct {
	Thought []string `json:"thought" validate:"required,min=1"`
}

// ImportRequest imports an indented outline under At
type ImportRequest struct {
	At   []string `json:"at"`
	Text string   `json:"text" validate:"required"`
}

// CommandResponse reports the effect of a command
type CommandResponse struct {
	Changed bool     `json:"changed"`
	Keys    int      `json:"keys"`
	Cursor  []string `json:"cursor,omitempty"`
}

// ChildrenResponse lists the children of a context
type ChildrenResponse struct {
	Context  []string            `json:"context"`
	Children []entities.ChildRef `json:"children"`
}

// ListChildren handles GET /thoughts?context=a/b. page and page_size select one page of
// the children.
func (h *ThoughtHandler) ListChildren(w http.ResponseWriter, r *http.Request) {
	ctx := valueobjects.ParseContext(r.URL.Query().Get("context"))
	children, err := h.service.ChildrenOf(ctx)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	if children == nil {
		children = []entities.ChildRef{}
	}

	page, paged, err := common.ExtractPaginationParams(r)
	if err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError(err.Error()))
		return
	}
	if !paged {
		common.Respond(w, http.StatusOK, ChildrenResponse{Context: ctx, Children: children})
		return
	}
	common.RespondPage(w, http.StatusOK, children, page, func(children []entities.ChildRef) ChildrenResponse {
		return ChildrenResponse{Context: ctx, Children: children}
	})
}

// GetLexeme handles GET /lexemes/{value}
func (h *ThoughtHandler) GetLexeme(w http.ResponseWriter, r *http.Request) {
	value := chi.URLParam(r, "value")
	lexeme, ok := h.service.Lexeme(value)
	if !ok {
		h.errors.Handle(w, r, pkgerrors.NewNotFoundError("lexeme"))
		return
	}
	common.Respond(w, http.StatusOK, lexeme)
}

// CreateThought handles POST /thoughts
func (h *ThoughtHandler) CreateThought(w http.ResponseWriter, r *http.Request) {
	var req CreateThoughtRequest
	if !h.decode(w, r, &req) {
		return
	}
	at, err := h.resolve(req.At)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.dispatch(w, r, http.StatusCreated, commands.Create{
		At:                  at,
		Value:               req.Value,
		InsertBefore:        req.InsertBefore,
		InsertNewSubthought: req.InsertNewSubthought,
		Rank:                req.Rank,
	})
}

// EditThought handles PUT /thoughts
func (h *ThoughtHandler) EditThought(w http.ResponseWriter, r *http.Request) {
	var req EditThoughtRequest
	if !h.decode(w, r, &req) {
		return
	}
	path, err := h.resolve(req.Thought)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.dispatch(w, r, http.StatusOK, commands.Edit{
		Path:     path,
		OldValue: path.Head().Value,
		NewValue: req.NewValue,
	})
}

// MoveThought handles POST /thoughts/move
func (h *ThoughtHandler) MoveThought(w http.ResponseWriter, r *http.Request) {
	var req MoveThoughtRequest
	if !h.decode(w, r, &req) {
		return
	}
	from, err := h.resolve(req.Thought)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	destination, err := h.resolve(req.Destination)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.dispatch(w, r, http.StatusOK, commands.Move{
		From: from,
		To:   destination.Append(valueobjects.PathSegment{Value: from.Head().Value, Rank: req.Rank}),
	})
}

// DeleteThought handles DELETE /thoughts
func (h *ThoughtHandler) DeleteThought(w http.ResponseWriter, r *http.Request) {
	h.pathCommand(w, r, func(path valueobjects.Path) commands.Command {
		return commands.Delete{Path: path}
	})
}

// BumpDown handles POST /thoughts/bump
func (h *ThoughtHandler) BumpDown(w http.ResponseWriter, r *http.Request) {
	h.pathCommand(w, r, func(path valueobjects.Path) commands.Command {
		return commands.BumpDown{Path: path}
	})
}

// MoveDown handles POST /thoughts/move-down
func (h *ThoughtHandler) MoveDown(w http.ResponseWriter, r *http.Request) {
	h.pathCommand(w, r, func(path valueobjects.Path) commands.Command {
		return commands.MoveDown{Path: path}
	})
}

// MoveUp handles POST /thoughts/move-up
func (h *ThoughtHandler) MoveUp(w http.ResponseWriter, r *http.Request) {
	h.pathCommand(w, r, func(path valueobjects.Path) commands.Command {
		return commands.MoveUp{Path: path}
	})
}

// SubCategorize handles POST /thoughts/subcategorize
func (h *ThoughtHandler) SubCategorize(w http.ResponseWriter, r *http.Request) {
	h.pathCommand(w, r, func(path valueobjects.Path) commands.Command {
		return commands.SubCategorize{Path: path}
	})
}

// Import handles POST /import
func (h *ThoughtHandler) Import(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if !h.decode(w, r, &req) {
		return
	}
	at, err := h.resolve(req.At)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.dispatch(w, r, http.StatusCreated, commands.ImportText{At: at, Text: req.Text})
}

// GetTree handles GET /tree?context=a&depth=2&meta=true
func (h *ThoughtHandler) GetTree(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	ctx := valueobjects.ParseContext(query.Get("context"))

	depth := 0
	if raw := query.Get("depth"); raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil || d < 0 {
			h.errors.Handle(w, r, pkgerrors.NewValidationError("depth must be a non-negative integer"))
			return
		}
		depth = d
	}
	includeMeta := query.Get("meta") == "true"

	if query.Get("format") == "text" {
		text, err := h.service.Export(ctx, includeMeta)
		if err != nil {
			h.errors.Handle(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(text))
		return
	}

	tree, err := h.service.Tree(ctx, depth, includeMeta)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.Respond(w, http.StatusOK, tree)
}

// GetSetting handles GET /settings/{name}
func (h *ThoughtHandler) GetSetting(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "Theme" {
		common.Respond(w, http.StatusOK, map[string]string{"name": name, "value": h.service.Theme()})
		return
	}
	value, ok := h.service.Setting(name)
	if !ok {
		h.errors.Handle(w, r, pkgerrors.NewNotFoundError("setting"))
		return
	}
	common.Respond(w, http.StatusOK, map[string]string{"name": name, "value": value})
}

func (h *ThoughtHandler) pathCommand(w http.ResponseWriter, r *http.Request, build func(valueobjects.Path) commands.Command) {
	var req ThoughtRequest
	if !h.decode(w, r, &req) {
		return
	}
	path, err := h.resolve(req.Thought)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.dispatch(w, r, http.StatusOK, build(path))
}

// resolve maps a context to the ranked path of the thought it names
func (h *ThoughtHandler) resolve(values []string) (valueobjects.Path, error) {
	if len(values) == 0 {
		return valueobjects.Path{}, nil
	}
	return h.service.PathOf(valueobjects.NewContext(values...))
}

func (h *ThoughtHandler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := common.ParseJSONBody(r, v, maxBodyBytes); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("Invalid request body: "+err.Error()))
		return false
	}
	if err := utils.ValidateStruct(v); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError(err.Error()))
		return false
	}
	return true
}

func (h *ThoughtHandler) dispatch(w http.ResponseWriter, r *http.Request, status int, cmd commands.Command) {
	result, err := h.service.Dispatch(r.Context(), cmd)
	if err != nil {
		if errors.Is(err, bus.ErrValidationFailed) {
			err = pkgerrors.NewValidationError(err.Error())
		}
		h.errors.Handle(w, r, err)
		return
	}
	if result.Alert != "" {
		h.errors.Handle(w, r, pkgerrors.NewPolicyError(result.Alert))
		return
	}
	if !result.Changed() {
		status = http.StatusOK
	}
	common.Respond(w, status, CommandResponse{
		Changed: result.Changed(),
		Keys:    result.Delta.Len(),
		Cursor:  result.Cursor.Context(),
	})
}

func validateRequest(v interface{}) error {
	if err := utils.ValidateStruct(v); err != nil {
		return pkgerrors.NewValidationError(err.Error())
	}
	return nil
}
