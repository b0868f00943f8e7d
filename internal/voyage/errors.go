package voyage

import "errors"

// ErrInvalidParameter некорректный параметр запроса чтения
// (например, speed_multiplier <= 0 для реплея)
var ErrInvalidParameter = errors.New("invalid parameter")
