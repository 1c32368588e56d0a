package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/erp/ordersync/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type validationTarget struct {
	Name  string `json:"name" binding:"required,max=5"`
	Count int    `json:"count" binding:"omitempty,min=1"`
	UF    string `json:"uf" binding:"omitempty,brazil_uf"`
}

func bindTarget(body string) error {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	var v validationTarget
	return c.ShouldBindJSON(&v)
}

func TestSetupValidator(t *testing.T) {
	require.NoError(t, SetupValidator())
	require.NoError(t, SetupValidator())

	require.NoError(t, bindTarget(`{"name":"ok","uf":"sp"}`))

	err := bindTarget(`{"name":"toolong","count":-1,"uf":"XX"}`)
	require.Error(t, err)
	details := ValidationDetails(err)
	require.Len(t, details, 3)
	assert.Equal(t, dto.ValidationDetail{Field: "name", Message: "Must be at most 5 characters"}, details[0])
	assert.Equal(t, dto.ValidationDetail{Field: "count", Message: "Must be at least 1"}, details[1])
	assert.Equal(t, dto.ValidationDetail{Field: "uf", Message: "Must be a Brazilian state code"}, details[2])

	details = ValidationDetails(bindTarget(`{}`))
	require.Len(t, details, 1)
	assert.Equal(t, "This field is required", details[0].Message)
}

func TestValidationDetails_NonValidatorError(t *testing.T) {
	details := ValidationDetails(errors.New("unexpected EOF"))
	assert.Equal(t, []dto.ValidationDetail{{Field: "body", Message: "unexpected EOF"}}, details)
}

func TestHandleValidationError(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.POST("/test", func(c *gin.Context) {
		HandleValidationError(c, errors.New("bad body"))
	})

	req := httptest.NewRequest(http.MethodPost, "/test", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	w := serve(router, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, dto.ErrCodeValidation)
	assert.Contains(t, body, `"request_id":"req-1"`)
	assert.Contains(t, body, `"field":"body"`)
}
