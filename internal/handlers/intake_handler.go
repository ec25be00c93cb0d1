package handlers

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"revintake/internal/models"
	"revintake/internal/repository"
	"revintake/internal/service"

	"github.com/gin-gonic/gin"
)

type IntakeHandler struct {
	service   service.IntakeService
	exportKey string
}

func NewIntakeHandler(svc service.IntakeService, exportKey string) *IntakeHandler {
	return &IntakeHandler{
		service:   svc,
		exportKey: exportKey,
	}
}

// Submit принимает multipart-форму заявки. Ответ — человекочитаемая
// строка с приоритетом, числом вложений и ключом Jira-задачи.
func (h *IntakeHandler) Submit(c *gin.Context) {
	contentType := c.GetHeader("Content-Type")
	if !strings.Contains(contentType, "multipart/form-data") {
		c.String(http.StatusBadRequest, "Expected multipart/form-data")
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.String(http.StatusBadRequest, "Invalid multipart form")
		return
	}

	sub := service.Submission{
		RequestTitle:           formValue(form.Value, "request_title"),
		RequestorName:          formValue(form.Value, "requestor_name"),
		RequestorTeam:          formValue(form.Value, "requestor_team"),
		ProblemStatement:       formValue(form.Value, "problem_statement"),
		ExpectedOutcome:        formValue(form.Value, "expected_outcome"),
		RevenueImpact:          formValue(form.Value, "revenue_impact"),
		AuditRisk:              formValue(form.Value, "audit_risk"),
		CustomerImpact:         formValue(form.Value, "customer_impact"),
		SystemsTouched:         form.Value["systems_touched"],
		DataObjects:            formValue(form.Value, "data_objects"),
		RequiredChanges:        formValue(form.Value, "required_changes"),
		Complexity:             formValue(form.Value, "complexity"),
		CrossFunctionalEffort:  formValue(form.Value, "cross_functional_effort"),
		TimelinePressure:       formValue(form.Value, "timeline_pressure"),
		ControlImpact:          formValue(form.Value, "control_impact"),
		DownstreamDependencies: formValue(form.Value, "downstream_dependencies"),
		Tags:                   form.Value["tags"],
	}

	// Файлы собираются из всех файловых частей формы, не по имени поля
	for _, files := range form.File {
		for _, fh := range files {
			if fh.Filename == "" {
				continue
			}

			src, err := fh.Open()
			if err != nil {
				log.Printf("Failed to open uploaded file %s: %v", fh.Filename, err)
				continue
			}
			data, err := io.ReadAll(src)
			src.Close()
			if err != nil {
				log.Printf("Failed to read uploaded file %s: %v", fh.Filename, err)
				continue
			}

			sub.Files = append(sub.Files, service.UploadedFile{
				Filename: fh.Filename,
				Data:     data,
			})
		}
	}

	result, err := h.service.Submit(c.Request.Context(), sub)
	if err != nil {
		var vErr *service.ValidationError
		if errors.As(err, &vErr) {
			c.String(http.StatusBadRequest, vErr.Message)
			return
		}
		log.Printf("Submit failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.String(http.StatusOK, result.Message)
}

// List возвращает до 100 заявок по убыванию приоритета и даты.
func (h *IntakeHandler) List(c *gin.Context) {
	filter := repository.ListFilter{
		Team:   c.Query("team"),
		Status: c.Query("status"),
		Search: c.Query("search"),
	}

	records, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		log.Printf("List failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, records)
}

func (h *IntakeHandler) Get(c *gin.Context) {
	record, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, service.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}
	if err != nil {
		log.Printf("Get failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, record)
}

// UpdateStatus — узкое обновление: только статус.
func (h *IntakeHandler) UpdateStatus(c *gin.Context) {
	var payload struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
		return
	}

	err := h.service.UpdateStatus(c.Request.Context(), c.Param("id"), payload.Status)
	switch {
	case errors.Is(err, service.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case err != nil:
		log.Printf("UpdateStatus failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// UpdateTriage — широкое обновление: статус плюс triage-поля,
// отсутствующие поля сохраняют прежние значения.
func (h *IntakeHandler) UpdateTriage(c *gin.Context) {
	var payload struct {
		ID          string  `json:"id"`
		Status      string  `json:"status"`
		TriageOwner *string `json:"triage_owner"`
		TriageNotes *string `json:"triage_notes"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
		return
	}

	id := strings.TrimSpace(payload.ID)
	status := strings.TrimSpace(payload.Status)

	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing id"})
		return
	}

	result, err := h.service.UpdateTriage(c.Request.Context(), id, status, payload.TriageOwner, payload.TriageNotes)
	switch {
	case errors.Is(err, service.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid status",
			"allowed": models.AllowedStatuses,
		})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case err != nil:
		log.Printf("UpdateTriage failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{
			"success":      true,
			"id":           result.ID,
			"status":       result.Status,
			"triage_owner": result.TriageOwner,
			"triage_notes": result.TriageNotes,
		})
	}
}

// Delete безусловен: успех и для несуществующего id.
func (h *IntakeHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		log.Printf("Delete failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Export отдаёт всю таблицу как CSV или Excel. Доступ по общему
// секрету в заголовке X-API-Key.
func (h *IntakeHandler) Export(c *gin.Context) {
	providedKey := c.GetHeader("X-API-Key")
	if h.exportKey == "" || providedKey != h.exportKey {
		c.String(http.StatusUnauthorized, "Unauthorized")
		return
	}

	format := c.DefaultQuery("format", "csv")

	switch format {
	case "csv":
		csvData, err := h.service.ExportCSV(c.Request.Context())
		if errors.Is(err, service.ErrNoData) {
			c.String(http.StatusNotFound, "No data to export")
			return
		}
		if err != nil {
			log.Printf("Export failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.Header("Content-Disposition", `attachment; filename="requests.csv"`)
		c.Data(http.StatusOK, "text/csv", []byte(csvData))

	case "excel", "xlsx":
		f, err := h.service.ExportWorkbook(c.Request.Context())
		if errors.Is(err, service.ErrNoData) {
			c.String(http.StatusNotFound, "No data to export")
			return
		}
		if err != nil {
			log.Printf("Export failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		defer f.Close()

		buf, err := f.WriteToBuffer()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.Header("Content-Disposition", `attachment; filename="requests.xlsx"`)
		c.Data(http.StatusOK,
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			buf.Bytes())

	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported format, use 'csv' or 'xlsx'"})
	}
}

// Backlog возвращает серверную проекцию для бэклог-вью.
func (h *IntakeHandler) Backlog(c *gin.Context) {
	items, err := h.service.Backlog(c.Request.Context())
	if err != nil {
		log.Printf("Backlog failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"projects": items})
}

func formValue(values map[string][]string, key string) string {
	if v, ok := values[key]; ok && len(v) > 0 {
		return v[0]
	}
	return ""
}
