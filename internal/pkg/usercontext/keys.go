package usercontext

// Shared Locals keys used across controllers and middlewares
const (
	KeyUserContext = "USER_CONTEXT"
	KeyProfile     = "profile"
	KeyUserID      = "user_id"
	KeyIsAdmin     = "isAdmin"
)
