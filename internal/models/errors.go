package models

import "errors"

var (
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("not found")
	// ErrRecordVerified 记录已被审核签字，不可再修改
	ErrRecordVerified = errors.New("record already verified")
)

// ErrCCPInactive CCP 已合并，只允许补录历史记录
var ErrCCPInactive = errors.New("ccp definition is merged")
