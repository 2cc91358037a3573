package handlers

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/sociantra/sociantra/internal/service"
	"github.com/sociantra/sociantra/internal/transfer"
)

type ScheduleHandler struct {
	s service.ScheduleService
}

func NewScheduleHandler(service service.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{s: service}
}

func (h *ScheduleHandler) CreateSchedule(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var sc transfer.ScheduleCreation
	if err := c.BodyParser(&sc); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse json",
		})
	}

	scheduleID, err := h.s.Create(c.Context(), userID, &sc)
	if err != nil {
		if errors.Is(err, service.ErrInvalidSchedule) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid schedule",
			})
		}
		slog.Info(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to create schedule",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message":     "Schedule created successfully",
		"schedule_id": scheduleID,
	})
}

func (h *ScheduleHandler) ListSchedules(c *fiber.Ctx) error {
	userID := GetUserID(c)

	schedules, err := h.s.List(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to list schedules",
		})
	}

	return c.Status(fiber.StatusOK).JSON(schedules)
}

func (h *ScheduleHandler) ActivateSchedule(c *fiber.Ctx) error {
	return h.setActive(c, true)
}

func (h *ScheduleHandler) DeactivateSchedule(c *fiber.Ctx) error {
	return h.setActive(c, false)
}

func (h *ScheduleHandler) setActive(c *fiber.Ctx, active bool) error {
	userID := GetUserID(c)
	scheduleId := c.QueryInt("id", 0)

	err := h.s.SetActive(c.Context(), userID, int64(scheduleId), active)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Schedule doesn't exist",
			})
		}
		if errors.Is(err, service.ErrInvalidSchedule) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid schedule",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to update schedule",
		})
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *ScheduleHandler) DeleteSchedule(c *fiber.Ctx) error {
	userID := GetUserID(c)
	scheduleId := c.QueryInt("id", 0)

	err := h.s.Delete(c.Context(), userID, int64(scheduleId))
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Schedule doesn't exist",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to delete schedule",
		})
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *ScheduleHandler) ListHistory(c *fiber.Ctx) error {
	userID := GetUserID(c)

	history, err := h.s.History(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to list posting history",
		})
	}

	return c.Status(fiber.StatusOK).JSON(history)
}
