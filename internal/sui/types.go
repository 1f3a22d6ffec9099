package sui

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EventID 事件游标
type EventID struct {
	TxDigest string `json:"txDigest"`
	EventSeq string `json:"eventSeq"`
}

// Event suix_queryEvents 返回的单个事件
type Event struct {
	ID                EventID         `json:"id"`
	PackageID         string          `json:"packageId"`
	TransactionModule string          `json:"transactionModule"`
	Sender            string          `json:"sender"`
	Type              string          `json:"type"`
	ParsedJSON        json.RawMessage `json:"parsedJson"`
	TimestampMs       U64             `json:"timestampMs"`
}

// ShortType 去掉包名和模块名的事件类型，如 NewContributionEvent
func (e Event) ShortType() string {
	return ShortType(e.Type)
}

// Time 事件时间
func (e Event) Time() time.Time {
	return time.UnixMilli(int64(e.TimestampMs)).UTC()
}

// ShortType 取 Move 类型的最后一段，忽略泛型参数
func ShortType(moveType string) string {
	if i := strings.IndexByte(moveType, '<'); i >= 0 {
		moveType = moveType[:i]
	}
	if i := strings.LastIndex(moveType, "::"); i >= 0 {
		return moveType[i+2:]
	}
	return moveType
}

// EventPage 事件分页结果
type EventPage struct {
	Data        []Event  `json:"data"`
	NextCursor  *EventID `json:"nextCursor"`
	HasNextPage bool     `json:"hasNextPage"`
}

// ObjectData 链上对象
type ObjectData struct {
	ObjectID string       `json:"objectId"`
	Version  string       `json:"version"`
	Digest   string       `json:"digest"`
	Type     string       `json:"type"`
	Content  *MoveContent `json:"content"`
}

// MoveContent 对象的 Move 内容
type MoveContent struct {
	DataType string          `json:"dataType"`
	Type     string          `json:"type"`
	Fields   json.RawMessage `json:"fields"`
}

// DecodeFields 解析对象字段
func (o *ObjectData) DecodeFields(v interface{}) error {
	if o.Content == nil || o.Content.DataType != "moveObject" {
		return fmt.Errorf("object %s has no move content", o.ObjectID)
	}
	return json.Unmarshal(o.Content.Fields, v)
}

type objectResponse struct {
	Data  *ObjectData `json:"data"`
	Error *struct {
		Code     string `json:"code"`
		ObjectID string `json:"object_id"`
	} `json:"error"`
}

// U64 JSON 中以字符串表示的 u64
type U64 uint64

// UnmarshalJSON 同时接受字符串和数字
func (u *U64) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*u = 0
		return nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid u64 %s: %w", string(b), err)
	}
	*u = U64(v)
	return nil
}

// MarshalJSON 输出字符串
func (u U64) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(strconv.FormatUint(uint64(u), 10))), nil
}

// Int64 转换为 int64
func (u U64) Int64() int64 {
	return int64(u)
}

// MoveEnum Move 枚举值，可能是 {"variant": "...", "fields": {...}} 或直接是字符串
type MoveEnum struct {
	Variant string
	Fields  json.RawMessage
}

// UnmarshalJSON 解析枚举
func (e *MoveEnum) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		e.Variant = s
		return nil
	}
	var raw struct {
		Variant   string          `json:"variant"`
		AtVariant string          `json:"@variant"`
		Fields    json.RawMessage `json:"fields"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("invalid move enum: %w", err)
	}
	e.Variant = raw.Variant
	if e.Variant == "" {
		e.Variant = raw.AtVariant
	}
	e.Fields = raw.Fields
	return nil
}

// MoveStruct 对象内容中嵌套的结构体 {"type": "...", "fields": {...}}
type MoveStruct[T any] struct {
	Type   string `json:"type"`
	Fields T      `json:"fields"`
}

// UID Move 对象ID
type UID struct {
	ID string `json:"id"`
}
