package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter       ErrorCode = 100
	ErrCodeInvalidConfiguration   ErrorCode = 101
	ErrCodeInvalidThreshold       ErrorCode = 102
	ErrCodeInvalidTrigger         ErrorCode = 103
	ErrCodeInvalidFeeMode         ErrorCode = 104
	ErrCodeInvalidRebalancePeriod ErrorCode = 105
	ErrCodeInsufficientData       ErrorCode = 106
	ErrCodeInvalidPeriod          ErrorCode = 107
	ErrCodeInvalidMarketData      ErrorCode = 108
	ErrCodeInvalidVersion         ErrorCode = 109

	// Data errors (200-299)
	ErrCodeDataNotFound          ErrorCode = 200
	ErrCodeDataSourceUnavailable ErrorCode = 201
	ErrCodeQueryFailed           ErrorCode = 202
	ErrCodeNoDataFound           ErrorCode = 203

	// Strategy errors (400-499)
	ErrCodeStrategyNotLoaded    ErrorCode = 400
	ErrCodeStrategyConfigError  ErrorCode = 401
	ErrCodeStrategyRuntimeError ErrorCode = 402
	ErrCodeVersionMismatch      ErrorCode = 403

	// Backtest errors (600-699)
	ErrCodeBacktestStateNil     ErrorCode = 600
	ErrCodeBacktestInitFailed   ErrorCode = 601
	ErrCodeBacktestConfigError  ErrorCode = 602
	ErrCodeBacktestNoStrategies ErrorCode = 603
	ErrCodeBacktestNoResultsDir ErrorCode = 604
	ErrCodeBacktestNoDatasource ErrorCode = 605
	ErrCodeBacktestWriteFailed  ErrorCode = 606

	// Callback errors (800-899)
	ErrCodeCallbackFailed ErrorCode = 800
)
