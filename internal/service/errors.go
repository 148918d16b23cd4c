package service

import "fmt"

// CatalogError 读取目录（CCP 定义、防虫标准、捕虫器位置）失败，评估未执行
type CatalogError struct {
	Catalog string
	Err     error
}

func (e *CatalogError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Catalog, e.Err)
}

func (e *CatalogError) Unwrap() error {
	return e.Err
}

// NotificationError 偏差事件交接失败；记录已保存，判定结果仍然返回
type NotificationError struct {
	SourceID string
	EventID  string
	Err      error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("deviation hand-off for %s (event %s) failed: %v", e.SourceID, e.EventID, e.Err)
}

func (e *NotificationError) Unwrap() error {
	return e.Err
}
