// Package health expone /healthz y /readyz.
package health

import (
	"net/http"

	httperrors "github.com/dropDatabas3/socialid/internal/http/errors"
	svc "github.com/dropDatabas3/socialid/internal/http/services/health"
)

type Controller struct {
	Service *svc.Service
}

// Live maneja GET /healthz.
func (c *Controller) Live(w http.ResponseWriter, r *http.Request) {
	httperrors.WriteJSON(w, http.StatusOK, c.Service.Live())
}

// Ready maneja GET /readyz. Reporta 503 si alguna dependencia falla.
func (c *Controller) Ready(w http.ResponseWriter, r *http.Request) {
	st := c.Service.Ready(r.Context())
	status := http.StatusOK
	if st.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	httperrors.WriteJSON(w, status, st)
}
