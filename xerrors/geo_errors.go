package xerrors

var (
	// ErrInvalidInput 坐标数组格式错误：长度不匹配、点集为空或纬度越界。
	ErrInvalidInput = New(ErrInvalidArg, 400101, "invalid input", "check coordinate arrays and reference points", nil)
	// ErrDatasetFormat 数据集无法解析。
	ErrDatasetFormat = New(ErrInvalidArg, 400102, "invalid dataset", "dataset must be lat,lon,value rows", nil)
	// ErrStaleIndex 索引背后的坐标集已被释放，必须重建。
	ErrStaleIndex = New(ErrFailedPrecondition, 409101, "stale index", "coordinate set was released, rebuild the index", nil)
	// ErrFieldNotFound 请求的格点场未加载。
	ErrFieldNotFound = New(ErrNotFound, 404101, "field not found", "no field registered under this name", nil)
	// ErrObjectNotFound 数据集来源中不存在该对象。
	ErrObjectNotFound = New(ErrNotFound, 404102, "dataset object not found", "", nil)
	// ErrSourceUnavailable 数据集来源熔断中，暂不可用。
	ErrSourceUnavailable = New(ErrUnavailable, 503101, "dataset source unavailable", "circuit breaker is open", nil)
	// ErrLookupTimeout 检索未能在请求期限内完成。
	ErrLookupTimeout = New(ErrDeadlineExceeded, 504101, "lookup timed out", "reduce the batch size or retry later", nil)
	// ErrHandlerPanic 处理请求时发生 panic。
	ErrHandlerPanic = New(ErrInternal, 500101, "internal server error", "an unexpected error occurred", nil)
	// ErrFieldExists 同名格点场已存在。
	ErrFieldExists = New(ErrAlreadyExists, 409102, "field already exists", "remove the field before registering it again", nil)
)

// InvalidInput 派生一个 ErrInvalidInput 类错误。
func InvalidInput(format string, args ...any) *Error {
	return Derive(ErrInvalidInput, format, args...)
}

// StaleIndex 派生一个 ErrStaleIndex 类错误。
func StaleIndex(format string, args ...any) *Error {
	return Derive(ErrStaleIndex, format, args...)
}
