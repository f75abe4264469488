package usercontext

// Locals keys shared by controllers and middlewares
const (
	KeyUserContext = "USER_CONTEXT"
	KeyUser        = "USER"
)
