// Package errors define el formato estándar de errores HTTP del servicio.
package errors

import (
	"encoding/json"
	"net/http"
)

// WriteError serializa un error como JSON con el status correspondiente.
// Errores que no son *AppError se degradan a INTERNAL_SERVER_ERROR sin
// filtrar detalle interno al cliente.
func WriteError(w http.ResponseWriter, err error) {
	appErr := FromError(err)

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(appErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(appErr)
}

// WriteJSON serializa una respuesta exitosa como JSON.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
