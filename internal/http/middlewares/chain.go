package middlewares

import "net/http"

// Middleware es un decorador de http.Handler. El router los apila con
// chi.Router.Use: el primero de la lista es el más externo.
type Middleware func(http.Handler) http.Handler
