package errs

// Error taxonomy for the realtime coordinator. Authentication failures close
// the connection; everything else is reported back on the offending
// connection only and never crashes the process.
const (
	CodeAuthentication = 1401
	CodeAuthorization  = 1403
	CodeValidation     = 1400
	CodePersistence    = 1500
	CodeInternal       = 1000
)

var (
	ErrAuthentication = NewCodeError(CodeAuthentication, "authentication failed")
	ErrAuthorization  = NewCodeError(CodeAuthorization, "not authorized for target")
	ErrValidation     = NewCodeError(CodeValidation, "malformed payload")
	ErrPersistence    = NewCodeError(CodePersistence, "persistence failure")
)
