package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/SatvikPraveen/SmartCampus-sub000/internal/models"
	"github.com/SatvikPraveen/SmartCampus-sub000/internal/service"
	appErrors "github.com/SatvikPraveen/SmartCampus-sub000/pkg/errors"
	"github.com/SatvikPraveen/SmartCampus-sub000/pkg/response"
)

// EnrollmentHandler exposes enrollment and waitlist endpoints.
type EnrollmentHandler struct {
	enrollments *service.EnrollmentService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments *service.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

// Enroll godoc
// @Summary Enroll a student into a course offering
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body service.EnrollRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	var req service.EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	record, err := h.enrollments.Enroll(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// BulkEnroll godoc
// @Summary Enroll several students into one course offering
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body service.BulkEnrollRequest true "Bulk enrollment payload"
// @Success 200 {object} response.Envelope
// @Router /enrollments/bulk [post]
func (h *EnrollmentHandler) BulkEnroll(c *gin.Context) {
	var req service.BulkEnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.enrollments.BulkEnroll(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// AddToWaitlist godoc
// @Summary Add a student to a course waitlist
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body service.EnrollRequest true "Waitlist payload"
// @Success 201 {object} response.Envelope
// @Router /enrollments/waitlist [post]
func (h *EnrollmentHandler) AddToWaitlist(c *gin.Context) {
	var req service.EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	record, err := h.enrollments.AddToWaitlist(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// RemoveFromWaitlist godoc
// @Summary Remove a student from a course waitlist
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body service.DropRequest true "Removal payload"
// @Success 200 {object} response.Envelope
// @Router /enrollments/waitlist/remove [post]
func (h *EnrollmentHandler) RemoveFromWaitlist(c *gin.Context) {
	var req service.DropRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	record, err := h.enrollments.RemoveFromWaitlist(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Drop godoc
// @Summary Drop an enrollment, promoting from the waitlist when a seat frees
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body service.DropRequest true "Drop payload"
// @Success 200 {object} response.Envelope
// @Router /enrollments/drop [post]
func (h *EnrollmentHandler) Drop(c *gin.Context) {
	var req service.DropRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	record, err := h.enrollments.Drop(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Withdraw godoc
// @Summary Withdraw an enrollment after the drop deadline
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body service.DropRequest true "Withdrawal payload"
// @Success 200 {object} response.Envelope
// @Router /enrollments/withdraw [post]
func (h *EnrollmentHandler) Withdraw(c *gin.Context) {
	var req service.DropRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	record, err := h.enrollments.Withdraw(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Transfer godoc
// @Summary Transfer a student between course offerings atomically
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body service.TransferRequest true "Transfer payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments/transfer [post]
func (h *EnrollmentHandler) Transfer(c *gin.Context) {
	var req service.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	record, err := h.enrollments.Transfer(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Complete godoc
// @Summary Mark an enrollment completed at term close
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body service.CompleteRequest true "Completion payload"
// @Success 200 {object} response.Envelope
// @Router /enrollments/complete [post]
func (h *EnrollmentHandler) Complete(c *gin.Context) {
	var req service.CompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	record, err := h.enrollments.Complete(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// ProcessWaitlist godoc
// @Summary Promote waitlisted students into freed seats
// @Tags Enrollments
// @Produce json
// @Param id path string true "Course ID"
// @Param count query int false "Maximum promotions, 0 fills all free seats"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/waitlist/process [post]
func (h *EnrollmentHandler) ProcessWaitlist(c *gin.Context) {
	count := 0
	if raw := c.Query("count"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "count must be a non-negative integer"))
			return
		}
		count = parsed
	}
	promoted, err := h.enrollments.ProcessWaitlist(c.Request.Context(), c.Param("id"), count)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"promoted": promoted}, nil)
}

// List godoc
// @Summary List enrollment records
// @Tags Enrollments
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param courseId query string false "Filter by course"
// @Param termId query string false "Filter by term"
// @Param status query string false "Filter by status"
// @Success 200 {object} response.Envelope
// @Router /enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	filter := models.EnrollmentFilter{
		StudentID: c.Query("studentId"),
		CourseID:  c.Query("courseId"),
		TermID:    c.Query("termId"),
		Status:    models.EnrollmentStatus(c.Query("status")),
	}
	records := h.enrollments.List(c.Request.Context(), filter)
	response.JSON(c, http.StatusOK, records, nil)
}

// StudentEnrollments godoc
// @Summary List a student's enrollment records
// @Tags Enrollments
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/enrollments [get]
func (h *EnrollmentHandler) StudentEnrollments(c *gin.Context) {
	records, err := h.enrollments.EnrollmentsForStudent(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// CourseEnrollments godoc
// @Summary List a course's enrollment records
// @Tags Enrollments
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/enrollments [get]
func (h *EnrollmentHandler) CourseEnrollments(c *gin.Context) {
	records, err := h.enrollments.EnrollmentsForCourse(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// Seats godoc
// @Summary Report seat and waitlist occupancy for a course
// @Tags Enrollments
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/seats [get]
func (h *EnrollmentHandler) Seats(c *gin.Context) {
	ctx := c.Request.Context()
	courseID := c.Param("id")
	available, err := h.enrollments.HasAvailableSeats(ctx, courseID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{
		"course_id":       courseID,
		"enrolled":        h.enrollments.CurrentEnrollmentCount(ctx, courseID),
		"waitlisted":      h.enrollments.CurrentWaitlistCount(ctx, courseID),
		"available_seats": available,
	}, nil)
}
