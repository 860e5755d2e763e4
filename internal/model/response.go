package model

// Response API统一响应，Code 与HTTP状态码一致
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// NewResponse 创建带数据的响应，命令失败时用于同时返回错误与输出
func NewResponse(code int, message string, data interface{}) Response {
	return Response{Code: code, Message: message, Data: data}
}

// SuccessResponse 创建成功响应
func SuccessResponse(data interface{}) Response {
	return NewResponse(200, "操作成功", data)
}

// ErrorResponse 创建错误响应
func ErrorResponse(code int, message string) Response {
	if code == 0 {
		code = 500
	}
	return NewResponse(code, message, nil)
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page 分页查询参数，绑定 ?page=&pageSize=
type Page struct {
	Number int `form:"page"`
	Size   int `form:"pageSize"`
}

// Normalize 补全默认值并限制每页数量
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

// PagedResponse 分页响应结构
type PagedResponse struct {
	Response
	Total      int64       `json:"total"`
	PageSize   int         `json:"page_size"`
	PageNumber int         `json:"page_number"`
	Pages      int         `json:"pages"`
	Items      interface{} `json:"items"`
}

// NewPagedResponse 创建分页响应，page 应已 Normalize
func NewPagedResponse(total int64, page Page, items interface{}) PagedResponse {
	pages := int((total + int64(page.Size) - 1) / int64(page.Size))
	return PagedResponse{
		Response:   SuccessResponse(nil),
		Total:      total,
		PageSize:   page.Size,
		PageNumber: page.Number,
		Pages:      pages,
		Items:      items,
	}
}
