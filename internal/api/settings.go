package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"hexentour/pkg/config"
)

// Applier pushes changed settings into running components.
type Applier interface {
	ApplySettings(ctx context.Context)
}

// SettingsHandler reads and changes runtime settings.
type SettingsHandler struct {
	prov  *config.UnifiedProvider
	apply Applier
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(prov *config.UnifiedProvider, apply Applier) *SettingsHandler {
	return &SettingsHandler{prov: prov, apply: apply}
}

// SettingsResponse represents the settings API response.
type SettingsResponse struct {
	Volume         float64 `json:"volume"`
	WordsPerSecond float64 `json:"words_per_second"`
	CaptionWidth   float64 `json:"caption_width"`
	ArrivalRadius  float64 `json:"arrival_radius"`
}

// SettingsRequest represents a settings update. Pointers tell a missing
// field from zero.
type SettingsRequest struct {
	Volume         *float64 `json:"volume,omitempty"`
	WordsPerSecond *float64 `json:"words_per_second,omitempty"`
	CaptionWidth   *float64 `json:"caption_width,omitempty"`
	ArrivalRadius  *float64 `json:"arrival_radius,omitempty"`
	Reset          bool     `json:"reset,omitempty"`
}

// HandleGet handles GET /api/settings
func (h *SettingsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ok(w, h.response(r.Context()))
}

func (h *SettingsHandler) response(ctx context.Context) SettingsResponse {
	return SettingsResponse{
		Volume:         h.prov.Volume(ctx),
		WordsPerSecond: h.prov.WordsPerSecond(ctx),
		CaptionWidth:   h.prov.CaptionWidth(ctx),
		ArrivalRadius:  h.prov.ArrivalRadius(ctx),
	}
}

// HandleSet handles POST /api/settings
func (h *SettingsHandler) HandleSet(w http.ResponseWriter, r *http.Request) {
	var req SettingsRequest
	if !decode(w, r, &req) {
		return
	}
	ctx := r.Context()

	if req.Reset {
		if err := h.prov.Reset(ctx); err != nil {
			writeErr(w, err)
			return
		}
	}

	updates := []struct {
		key string
		val *float64
	}{
		{config.KeyVolume, req.Volume},
		{config.KeyWordsPerSecond, req.WordsPerSecond},
		{config.KeyCaptionWidth, req.CaptionWidth},
		{config.KeyArrivalRadius, req.ArrivalRadius},
	}
	for _, u := range updates {
		if u.val == nil {
			continue
		}
		if err := h.prov.Set(ctx, u.key, strconv.FormatFloat(*u.val, 'f', -1, 64)); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Info("API: Setting changed", "key", u.key, "value", *u.val)
	}

	if h.apply != nil {
		h.apply.ApplySettings(ctx)
	}
	ok(w, h.response(ctx))
}
