// Package http exposes the workspace operations as a REST surface for
// the rendering layer.
package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/TermDeck/backend/internal/logging"
	"github.com/GriffinCanCode/TermDeck/backend/internal/providers"
	"github.com/GriffinCanCode/TermDeck/backend/internal/registry"
	"github.com/GriffinCanCode/TermDeck/backend/internal/workspace"
)

// Handlers binds the workspace controller to HTTP routes.
type Handlers struct {
	controller *workspace.Controller
	configs    providers.Source
	logger     *logging.Logger
}

// NewHandlers creates the REST handler set.
func NewHandlers(controller *workspace.Controller, configs providers.Source, logger *logging.Logger) *Handlers {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handlers{
		controller: controller,
		configs:    configs,
		logger:     logger.Named("api"),
	}
}

// Register mounts all routes on the router group.
func (h *Handlers) Register(r *gin.RouterGroup) {
	r.GET("/workspace", h.GetWorkspace)
	r.POST("/workspace/reconcile", h.Reconcile)
	r.DELETE("/workspace", h.ClearAll)

	r.POST("/tabs", h.CreateTab)
	r.POST("/tabs/agent", h.CreateAgentTab)
	r.DELETE("/tabs/:id", h.CloseTab)
	r.PUT("/tabs/:id/activate", h.ActivateTab)
	r.PUT("/tabs/:id/provider", h.SwitchProvider)
	r.PUT("/tabs/:id/group", h.AssignGroup)

	r.GET("/groups", h.ListGroups)
	r.POST("/groups", h.AddGroup)
	r.DELETE("/groups/:id", h.RemoveGroup)
	r.PUT("/groups/:id/activate", h.ActivateGroup)

	r.GET("/history", h.ListHistory)
	r.POST("/history/:id/restore", h.RestoreHistory)
	r.DELETE("/history/:id", h.EvictHistory)
	r.DELETE("/history", h.ClearHistory)

	r.GET("/providers", h.ListProviders)

	r.PUT("/panels/sidebar", h.SetSidebar)
	r.PUT("/panels/drawer", h.SetDrawer)
}

// GetWorkspace returns the full workspace snapshot.
func (h *Handlers) GetWorkspace(c *gin.Context) {
	c.JSON(http.StatusOK, h.controller.Store().Snapshot())
}

// Reconcile re-syncs the workspace against the session registry.
func (h *Handlers) Reconcile(c *gin.Context) {
	if err := h.controller.Reconcile(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.controller.Store().Snapshot())
}

// ClearAll closes every tab.
func (h *Handlers) ClearAll(c *gin.Context) {
	h.controller.ClearAll(c.Request.Context())
	c.JSON(http.StatusOK, h.controller.Store().Snapshot())
}

type createTabRequest struct {
	ConfigID string `json:"config_id" binding:"required"`
	Name     string `json:"name"`
	WorkDir  string `json:"work_dir"`
	GroupID  string `json:"group_id"`
}

// CreateTab creates a plain terminal session.
func (h *Handlers) CreateTab(c *gin.Context) {
	var req createTabRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tab, err := h.controller.CreateTerminal(c.Request.Context(), workspace.CreateOptions{
		ConfigID: req.ConfigID,
		Name:     req.Name,
		WorkDir:  req.WorkDir,
		GroupID:  req.GroupID,
	})
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tab)
}

type createAgentTabRequest struct {
	ConfigID string   `json:"config_id" binding:"required"`
	WorkDir  string   `json:"work_dir" binding:"required"`
	Name     string   `json:"name"`
	GroupID  string   `json:"group_id"`
	Command  string   `json:"command"`
	Args     []string `json:"args"`
}

// CreateAgentTab creates a terminal session pre-wired to run an agent.
func (h *Handlers) CreateAgentTab(c *gin.Context) {
	var req createAgentTabRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tab, err := h.controller.CreateAgentTerminal(c.Request.Context(), workspace.AgentCreateOptions{
		ConfigID: req.ConfigID,
		WorkDir:  req.WorkDir,
		Name:     req.Name,
		GroupID:  req.GroupID,
		Agent: registry.AgentOptions{
			Command: req.Command,
			Args:    req.Args,
		},
	})
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tab)
}

// CloseTab closes a session. Unknown IDs succeed: close is idempotent.
func (h *Handlers) CloseTab(c *gin.Context) {
	if err := h.controller.CloseTab(c.Request.Context(), c.Param("id")); err != nil {
		h.renderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ActivateTab moves the active pointer.
func (h *Handlers) ActivateTab(c *gin.Context) {
	if !h.controller.Store().SetActive(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "tab not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

type switchProviderRequest struct {
	ConfigID string `json:"config_id" binding:"required"`
}

// SwitchProvider re-routes a live session through another configuration.
func (h *Handlers) SwitchProvider(c *gin.Context) {
	var req switchProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.controller.SwitchProvider(c.Request.Context(), c.Param("id"), req.ConfigID); err != nil {
		h.renderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type assignGroupRequest struct {
	GroupID string `json:"group_id" binding:"required"`
}

// AssignGroup moves a tab into a group.
func (h *Handlers) AssignGroup(c *gin.Context) {
	var req assignGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !h.controller.Store().AssignGroup(c.Param("id"), req.GroupID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "tab or group not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// ListGroups returns the group list and the active group.
func (h *Handlers) ListGroups(c *gin.Context) {
	snap := h.controller.Store().Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"groups":          snap.Groups,
		"active_group_id": snap.ActiveGroupID,
	})
}

type addGroupRequest struct {
	GroupID string `json:"group_id" binding:"required"`
}

// AddGroup creates a new tab group.
func (h *Handlers) AddGroup(c *gin.Context) {
	var req addGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.controller.Store().AddGroup(req.GroupID)
	c.Status(http.StatusCreated)
}

// RemoveGroup deletes a group; its members fall back to the default group.
func (h *Handlers) RemoveGroup(c *gin.Context) {
	if !h.controller.Store().RemoveGroup(c.Param("id")) {
		c.JSON(http.StatusConflict, gin.H{"error": "group cannot be removed"})
		return
	}
	c.Status(http.StatusNoContent)
}

// ActivateGroup selects which group the tab strip shows.
func (h *Handlers) ActivateGroup(c *gin.Context) {
	if !h.controller.Store().SetActiveGroup(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// ListHistory returns closed-session entries, newest first.
func (h *Handlers) ListHistory(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"history": h.controller.History().List()})
}

// RestoreHistory creates a fresh session from a history entry.
func (h *Handlers) RestoreHistory(c *gin.Context) {
	tab, err := h.controller.Restore(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tab)
}

// EvictHistory removes a single ledger entry.
func (h *Handlers) EvictHistory(c *gin.Context) {
	if !h.controller.History().Evict(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "history entry not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// ClearHistory empties the ledger.
func (h *Handlers) ClearHistory(c *gin.Context) {
	h.controller.History().Clear()
	c.Status(http.StatusNoContent)
}

// ListProviders returns the known provider configurations.
func (h *Handlers) ListProviders(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"providers": h.configs.List()})
}

type panelRequest struct {
	Open *bool `json:"open" binding:"required"`
}

// SetSidebar toggles the sidebar panel.
func (h *Handlers) SetSidebar(c *gin.Context) {
	var req panelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.controller.Store().SetSidebarOpen(*req.Open)
	c.Status(http.StatusNoContent)
}

// SetDrawer toggles the bottom drawer panel.
func (h *Handlers) SetDrawer(c *gin.Context) {
	var req panelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.controller.Store().SetDrawerOpen(*req.Open)
	c.Status(http.StatusNoContent)
}

func (h *Handlers) renderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, workspace.ErrProviderUnavailable):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, workspace.ErrTabNotFound), errors.Is(err, workspace.ErrHistoryNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, registry.ErrConfigUnavailable):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, registry.ErrTransport):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
