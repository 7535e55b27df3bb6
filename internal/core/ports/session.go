package ports

// Session exposes the authenticated session to the cache layer.
//
//go:generate go run go.uber.org/mock/mockgen -source=session.go -destination=mocks/mock_session.go -package=mocks
type Session interface {
	// Token returns the bearer token for remote fetches. It returns
	// domain.ErrSessionEnded when no user is logged in.
	Token() (string, error)

	// Epoch increments every time the session changes (login or logout).
	// A refresh captures the epoch when it starts and must not commit its
	// result if the epoch has moved on.
	Epoch() uint64
}
