package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	CodeSuccess       = 0
	CodeParamError    = 400
	CodeUnauthorized  = 401
	CodeForbidden     = 403
	CodeNotFound      = 404
	CodeServerError   = 500
	CodeBusinessError = 1000
)

// 业务错误码
// 挖矿判定失败（竞态、冷却、距离等）不是错误，作为 data 里的业务结果返回；
// 这里只给真正需要区分处理的失败路径编码
const (
	CodePlayerNotFound   = 1001
	CodeNodeNotFound     = 1002
	CodeRateLimited      = 1003
	CodeNothingToClaim   = 1004
	CodeAmountExceedsMax = 1005
	CodeClaimNotFound    = 1006
	CodeClaimAlreadyUsed = 1008 // 1007 已退役（过期签名不再拒绝确认）
	CodeNonceMismatch    = 1009
	CodeChainUnavailable = 1010
)

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
	})
}

func ParamError(c *gin.Context, message string) {
	Error(c, CodeParamError, message)
}

func ServerError(c *gin.Context, message string) {
	Error(c, CodeServerError, message)
}

func BusinessError(c *gin.Context, code int, message string) {
	Error(c, code, message)
}
