// Package httpapi exposes the engine's command surface as a small
// machine-facing REST API.
package httpapi

import (
	"errors"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/avoran/gramstream/internal/app"
	"github.com/avoran/gramstream/internal/config"
	"github.com/avoran/gramstream/internal/core"
	"github.com/avoran/gramstream/internal/domain"
)

type streamRequest struct {
	Path       string            `json:"path" binding:"required"`
	JoinAs     *domain.InputPeer `json:"join_as"`
	Muted      bool              `json:"muted"`
	InviteHash string            `json:"invite_hash"`
}

type editRequest struct {
	Participant domain.InputPeer   `json:"participant" binding:"required"`
	Edit        domain.EditRequest `json:"edit"`
}

type volumeRequest struct {
	Participant domain.InputPeer `json:"participant" binding:"required"`
	Volume      int              `json:"volume" binding:"required,gte=1,lte=20000"`
}

func SetupRouter(cfg *config.Config, eng *app.Streamer) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	calls := r.Group("/api/calls/:chat")

	calls.POST("/stream", func(c *gin.Context) { handleStream(c, eng) })
	calls.POST("/stop", func(c *gin.Context) {
		chat, ok := chatParam(c)
		if !ok {
			return
		}
		stopped, err := eng.Stop(c.Request.Context(), chat)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"stopped": stopped})
	})

	calls.POST("/pause", controlHandler(eng, (*app.Streamer).Pause))
	calls.POST("/resume", controlHandler(eng, (*app.Streamer).Resume))
	calls.POST("/mute", controlHandler(eng, (*app.Streamer).Mute))
	calls.POST("/unmute", controlHandler(eng, (*app.Streamer).Unmute))

	calls.GET("", func(c *gin.Context) {
		chat, ok := chatParam(c)
		if !ok {
			return
		}
		state, tracked := eng.State(chat)
		if !tracked {
			c.JSON(http.StatusNotFound, gin.H{"error": "not in call"})
			return
		}
		resp := gin.H{
			"state":     state.String(),
			"connected": eng.Connected(chat),
		}
		if finished, ok := eng.Finished(chat); ok {
			resp["finished"] = finished
		}
		c.JSON(http.StatusOK, resp)
	})

	calls.POST("/participants", func(c *gin.Context) {
		chat, ok := chatParam(c)
		if !ok {
			return
		}
		var req editRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		edited, err := eng.Edit(c.Request.Context(), chat, req.Participant, req.Edit)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"edited": edited})
	})

	calls.POST("/volume", func(c *gin.Context) {
		chat, ok := chatParam(c)
		if !ok {
			return
		}
		var req volumeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		edited, err := eng.SetVolume(c.Request.Context(), chat, req.Participant, req.Volume)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"edited": edited})
	})

	log.Info().Str("module", "httpapi").Msg("router setup")
	return r
}

func handleStream(c *gin.Context, eng *app.Streamer) {
	chat, ok := chatParam(c)
	if !ok {
		return
	}
	var req streamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	f, err := os.Open(req.Path)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	opts := domain.StreamOptions{
		Join: domain.JoinOptions{
			Muted:      req.Muted,
			InviteHash: req.InviteHash,
		},
	}
	if req.JoinAs != nil {
		opts.Join.JoinAs = *req.JoinAs
	}

	if err := eng.Stream(c.Request.Context(), chat, f, opts); err != nil {
		_ = f.Close()
		c.JSON(streamErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"streaming": true})
}

func streamErrorStatus(err error) int {
	switch {
	case errors.Is(err, core.ErrNoActiveCall):
		return http.StatusConflict
	case errors.Is(err, core.ErrNotGroupChat):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

func controlHandler(eng *app.Streamer, op func(*app.Streamer, domain.ChatID) domain.ControlResult) gin.HandlerFunc {
	return func(c *gin.Context) {
		chat, ok := chatParam(c)
		if !ok {
			return
		}
		res := op(eng, chat)
		if res == domain.ControlAbsent {
			c.JSON(http.StatusNotFound, gin.H{"error": "not in call"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"changed": res == domain.ControlChanged})
	}
}

func chatParam(c *gin.Context) (domain.ChatID, bool) {
	id, err := strconv.ParseInt(c.Param("chat"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return 0, false
	}
	return domain.ChatID(id), true
}
