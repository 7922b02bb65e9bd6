package handler

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sims-api/internal/dto"
	"github.com/noah-isme/sims-api/internal/middleware"
	"github.com/noah-isme/sims-api/internal/models"
	"github.com/noah-isme/sims-api/internal/service"
	appErrors "github.com/noah-isme/sims-api/pkg/errors"
)

type exportServiceMock struct {
	lastFormat string
	lastSheet  service.AttendanceSheetRequest
	lastActor  models.Actor
	download   *service.ExportDownload
	resolveErr error
}

func (m *exportServiceMock) RankList(_ context.Context, examID, rawFormat string) (*dto.ExportResponse, error) {
	m.lastFormat = rawFormat
	return &dto.ExportResponse{ID: "exp-1", Kind: service.ExportRankList, Format: "csv"}, nil
}

func (m *exportServiceMock) ReportCard(_ context.Context, actor models.Actor, examID, studentID string) (*dto.ExportResponse, error) {
	m.lastActor = actor
	return &dto.ExportResponse{ID: "exp-2", Kind: service.ExportReportCard, Format: "pdf"}, nil
}

func (m *exportServiceMock) FeeReceipt(_ context.Context, actor models.Actor, paymentID string) (*dto.ExportResponse, error) {
	return nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to view this student")
}

func (m *exportServiceMock) AttendanceSheet(_ context.Context, req service.AttendanceSheetRequest) (*dto.ExportResponse, error) {
	m.lastSheet = req
	return &dto.ExportResponse{ID: "exp-3", Kind: service.ExportAttendanceSheet, Format: "xlsx"}, nil
}

func (m *exportServiceMock) Resolve(_ context.Context, token string) (*service.ExportDownload, error) {
	return m.download, m.resolveErr
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func TestExportHandlerRankListPassesFormat(t *testing.T) {
	mock := &exportServiceMock{}
	handler := NewExportHandler(mock)

	c, w := newGinContext(http.MethodPost, "/exports/exams/exam-1/ranks?format=pdf", nil)
	c.Params = gin.Params{{Key: "id", Value: "exam-1"}}
	handler.RankList(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "pdf", mock.lastFormat)
}

func TestExportHandlerReportCardUsesCaller(t *testing.T) {
	mock := &exportServiceMock{}
	handler := NewExportHandler(mock)

	c, w := newGinContext(http.MethodPost, "/exports/exams/exam-1/report-cards/s1", nil)
	c.Params = gin.Params{{Key: "id", Value: "exam-1"}, {Key: "studentId", Value: "s1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u-stu", Role: models.RoleStudent})
	handler.ReportCard(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "u-stu", mock.lastActor.UserID)
	assert.Equal(t, models.RoleStudent, mock.lastActor.Role)
}

func TestExportHandlerReceiptForbidden(t *testing.T) {
	handler := NewExportHandler(&exportServiceMock{})

	c, w := newGinContext(http.MethodPost, "/exports/payments/pay-1/receipt", nil)
	c.Params = gin.Params{{Key: "paymentId", Value: "pay-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u-stu", Role: models.RoleStudent})
	handler.FeeReceipt(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestExportHandlerAttendanceSheetBindsQuery(t *testing.T) {
	mock := &exportServiceMock{}
	handler := NewExportHandler(mock)

	c, w := newGinContext(http.MethodPost, "/exports/attendance?class_id=c1&date_from=2025-03-01&date_to=2025-03-31&format=xlsx", nil)
	handler.AttendanceSheet(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "c1", mock.lastSheet.ClassID)
	assert.Equal(t, "2025-03-31", mock.lastSheet.DateTo)
	assert.Equal(t, "xlsx", mock.lastSheet.Format)
}

func TestExportHandlerDownloadStreamsFile(t *testing.T) {
	handler := NewExportHandler(&exportServiceMock{download: &service.ExportDownload{
		Body:        io.NopCloser(bytes.NewBufferString("Rank,Name\n1,Aisha\n")),
		Filename:    "rank_list.csv",
		ContentType: "text/csv",
	}})

	c, w := newGinContext(http.MethodGet, "/exports/download/tok", nil)
	c.Params = gin.Params{{Key: "token", Value: "tok"}}
	handler.Download(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "rank_list.csv")
	assert.Equal(t, "Rank,Name\n1,Aisha\n", w.Body.String())
}

func TestExportHandlerDownloadRejectsBadToken(t *testing.T) {
	handler := NewExportHandler(&exportServiceMock{resolveErr: appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")})

	c, w := newGinContext(http.MethodGet, "/exports/download/bad", nil)
	c.Params = gin.Params{{Key: "token", Value: "bad"}}
	handler.Download(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
}
