package api

import (
	"fmt"
	"io"
	"net/http"

	"github.com/ascenthq/ascent/internal/webhooks"
)

// maxWebhookBody caps webhook payloads at 1 MiB.
const maxWebhookBody = 1 << 20

type WebhooksHandler struct {
	sync *webhooks.Synchronizer
}

func NewWebhooksHandler(sync *webhooks.Synchronizer) *WebhooksHandler {
	return &WebhooksHandler{sync: sync}
}

// IdentityWebhook ingests identity provider events. The provider retries on
// non-2xx, so processing failures are logged and acknowledged; replays are
// safe because every sync operation is idempotent.
func (h *WebhooksHandler) IdentityWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		logger.Error("failed to read webhook body", "err", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, `{"received":true}`)
		return
	}

	if err := h.sync.Process(r.Context(), body); err != nil {
		logger.Error("webhook processing failed", "err", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, `{"received":true}`)
}
