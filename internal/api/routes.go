package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/acornrpa/acorn/internal/models"
)

// registerRoutes sets up the management routes.
func registerRoutes(router *gin.Engine, opts StartOpts) {
	api := router.Group("/api")

	api.GET("/health", handleHealth(opts))

	api.GET("/rules", handleRuleList(opts))
	api.GET("/rules/:id", handleRuleGet(opts))
	api.POST("/rules", handleRuleSave(opts))
	api.DELETE("/rules/:id", handleRuleDelete(opts))
	api.POST("/rules/:id/enable", handleRuleEnable(opts))
	api.POST("/rules/:id/priority", handleRulePriority(opts))

	api.GET("/scripts", handleScriptList(opts))
	api.GET("/scripts/:id", handleScriptGet(opts))
	api.POST("/scripts", handleScriptSave(opts))
	api.DELETE("/scripts/:id", handleScriptDelete(opts))
	api.POST("/scripts/:id/enable", handleScriptEnable(opts))
	api.POST("/scripts/:id/test", handleScriptTest(opts))

	api.GET("/messages", handleMessageList(opts))
	api.GET("/messages/unreplied", handleMessageUnreplied(opts))
	api.GET("/messages/count", handleMessageCount(opts))

	api.POST("/tap", handleTap(opts))
}

func handleHealth(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":         "ok",
			"cached_rules":   len(opts.Engine.CachedRules()),
			"loaded_scripts": opts.Eval.IDs(),
		})
	}
}

func ruleID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rule id"})
		return 0, false
	}
	return uint(id), true
}

func handleRuleList(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		rs, err := opts.Store.Rules()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, rs)
	}
}

func handleRuleGet(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := ruleID(c)
		if !ok {
			return
		}
		r, err := opts.Store.RuleByID(id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if r == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "rule not found"})
			return
		}
		c.JSON(http.StatusOK, r)
	}
}

func handleRuleSave(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		var r models.MessageRule
		if err := c.ShouldBindJSON(&r); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if !models.ValidMatchType(r.MatchType) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid match_type"})
			return
		}
		if !models.ValidResponseType(r.ResponseType) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid response_type"})
			return
		}
		if err := opts.Store.SaveRule(&r); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		refreshRules(opts)
		c.JSON(http.StatusOK, r)
	}
}

func handleRuleDelete(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := ruleID(c)
		if !ok {
			return
		}
		if err := opts.Store.DeleteRule(id); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		refreshRules(opts)
		c.JSON(http.StatusOK, gin.H{"deleted": id})
	}
}

func handleRuleEnable(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := ruleID(c)
		if !ok {
			return
		}
		var body struct {
			Enabled bool `json:"enabled"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := opts.Store.SetRuleEnabled(id, body.Enabled); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		refreshRules(opts)
		c.JSON(http.StatusOK, gin.H{"id": id, "enabled": body.Enabled})
	}
}

func handleRulePriority(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := ruleID(c)
		if !ok {
			return
		}
		var body struct {
			Priority int `json:"priority"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := opts.Store.SetRulePriority(id, body.Priority); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		refreshRules(opts)
		c.JSON(http.StatusOK, gin.H{"id": id, "priority": body.Priority})
	}
}

// refreshRules reloads the engine cache after a rule mutation. A failed
// reload is not surfaced to the caller; the engine keeps its previous
// cache and logs the failure itself.
func refreshRules(opts StartOpts) {
	opts.Engine.RefreshCache()
}

func handleScriptList(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		scripts, err := opts.Store.Scripts()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, scripts)
	}
}

func handleScriptGet(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		sc, err := opts.Store.ScriptByID(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if sc == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "script not found"})
			return
		}
		c.JSON(http.StatusOK, sc)
	}
}

func handleScriptSave(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		var sc models.ScriptInfo
		if err := c.ShouldBindJSON(&sc); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if sc.Content == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
			return
		}
		if sc.ID == "" {
			sc.ID = uuid.NewString()
		}
		if sc.Name == "" {
			sc.Name = sc.ID
		}

		// An enabled script must compile before anything is persisted,
		// so a typo never evicts the working version from the store.
		if sc.Enabled {
			if err := opts.Eval.Register(sc.ID, sc.Content); err != nil {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
		} else {
			opts.Eval.Unregister(sc.ID)
		}

		if err := opts.Store.SaveScript(&sc); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, sc)
	}
}

func handleScriptDelete(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if err := opts.Store.DeleteScript(id); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		opts.Eval.Unregister(id)
		c.JSON(http.StatusOK, gin.H{"deleted": id})
	}
}

func handleScriptEnable(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		var body struct {
			Enabled bool `json:"enabled"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		sc, err := opts.Store.ScriptByID(id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if sc == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "script not found"})
			return
		}

		if body.Enabled {
			if err := opts.Eval.Register(id, sc.Content); err != nil {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
		} else {
			opts.Eval.Unregister(id)
		}
		if err := opts.Store.SetScriptEnabled(id, body.Enabled); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id, "enabled": body.Enabled})
	}
}

// handleScriptTest runs a stored script against a caller-supplied message
// under a throwaway registration, so disabled or edited scripts can be
// exercised without touching the live evaluator entry.
func handleScriptTest(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		var body struct {
			Message string `json:"message"`
			Sender  string `json:"sender"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		sc, err := opts.Store.ScriptByID(id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if sc == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "script not found"})
			return
		}

		tempID := "test:" + uuid.NewString()
		if err := opts.Eval.Register(tempID, sc.Content); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		defer opts.Eval.Unregister(tempID)

		reply, err := opts.Eval.ProcessChatMessage(tempID, body.Message, body.Sender)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"reply": reply})
	}
}

func handleMessageList(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

		var (
			msgs []models.ChatMessage
			err  error
		)
		if sender := c.Query("sender"); sender != "" {
			msgs, err = opts.Store.MessagesBySender(sender, limit, offset)
		} else {
			msgs, err = opts.Store.RecentMessages(limit, offset)
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, msgs)
	}
}

func handleMessageUnreplied(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		msgs, err := opts.Store.UnrepliedMessages()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, msgs)
	}
}

func handleMessageCount(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := opts.Store.MessageCount()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"count": n})
	}
}

// handleTap queues a direct tap on the device, bypassing the reply queue.
func handleTap(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		if opts.Dispatcher == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "dispatcher not running"})
			return
		}
		var body struct {
			X int `json:"x"`
			Y int `json:"y"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := opts.Dispatcher.ClickAt(body.X, body.Y); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"tapped": []int{body.X, body.Y}})
	}
}
