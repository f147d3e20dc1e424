package core

// PairKey genera la clave determinística de un par de usuarios:
// IDs ordenados lexicográficamente, unidos con ":". La misma para
// ambas direcciones de la amistad.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}
