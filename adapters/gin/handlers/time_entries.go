package handlers

import (
	"errors"
	"math"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	authgin "github.com/open-rails/workplan/adapters/gin"
	"github.com/open-rails/workplan/authz"
	"github.com/open-rails/workplan/store"
)

type timeEntryCreateReq struct {
	TaskID      uuid.UUID  `json:"task_id" binding:"required"`
	StartTime   time.Time  `json:"start_time" binding:"required"`
	EndTime     *time.Time `json:"end_time"`
	Description *string    `json:"description"`
	External    bool       `json:"external"`
	Billable    *bool      `json:"billable"`
}

type timeEntryUpdateReq struct {
	StartTime   *time.Time `json:"start_time"`
	EndTime     *time.Time `json:"end_time"`
	Description *string    `json:"description"`
	External    *bool      `json:"external"`
	Billable    *bool      `json:"billable"`
}

// HandleTimeEntryCreatePOST starts a new entry (no end time) or records a
// completed one. Enforces the overlap rules: one running entry per user,
// and no start inside an existing entry's range.
func HandleTimeEntryCreatePOST(st *store.Store, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, _, ok := caller(c, st)
		if !ok {
			return
		}
		var req timeEntryCreateReq
		if err := c.ShouldBindJSON(&req); err != nil {
			authgin.BadRequest(c, "invalid request body")
			return
		}
		if req.EndTime != nil && !req.EndTime.After(req.StartTime) {
			authgin.BadRequest(c, "end time must be after start time")
			return
		}

		task, err := st.TaskByID(c.Request.Context(), req.TaskID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				authgin.NotFound(c, "task not found")
			} else {
				authgin.ServerErr(c, "failed to load task")
			}
			return
		}

		// Project access: owner or member.
		member, err := st.IsProjectMember(c.Request.Context(), task.ProjectID, u.ID)
		if err != nil {
			authgin.ServerErr(c, "failed to check project access")
			return
		}
		if !member {
			authgin.Forbidden(c, "access denied to this project")
			return
		}

		if req.EndTime == nil {
			if _, err := st.RunningEntry(c.Request.Context(), u.ID); err == nil {
				authgin.BadRequest(c, "another time entry is currently running, stop it first")
				return
			} else if !errors.Is(err, store.ErrNotFound) {
				authgin.ServerErr(c, "failed to check running entries")
				return
			}
		}

		overlap, err := st.HasOverlap(c.Request.Context(), u.ID, req.StartTime, uuid.Nil)
		if err != nil {
			authgin.ServerErr(c, "failed to check overlapping entries")
			return
		}
		if overlap {
			authgin.BadRequest(c, "time entry overlaps with existing entry")
			return
		}

		te := &store.TimeEntry{
			UserID:      u.ID,
			TaskID:      task.ID,
			ProjectID:   task.ProjectID,
			Description: req.Description,
			StartTime:   req.StartTime,
			EndTime:     req.EndTime,
			External:    req.External,
			Billable:    true,
		}
		if req.Billable != nil {
			te.Billable = *req.Billable
		}
		if err := st.CreateTimeEntry(c.Request.Context(), te); err != nil {
			authgin.ServerErr(c, "failed to create time entry")
			return
		}
		log.WithFields(logrus.Fields{"entry_id": te.ID, "task_id": te.TaskID}).Info("created time entry")
		c.JSON(http.StatusCreated, te)
	}
}

// HandleTimeEntryStopPOST closes the caller's entry at the given (or
// current) time.
func HandleTimeEntryStopPOST(st *store.Store, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, _, ok := caller(c, st)
		if !ok {
			return
		}
		entryID, ok := pathUUID(c, "entry_id")
		if !ok {
			return
		}
		var req struct {
			EndTime *time.Time `json:"end_time"`
		}
		_ = c.ShouldBindJSON(&req)

		te, err := st.TimeEntryByID(c.Request.Context(), entryID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				authgin.NotFound(c, "time entry not found")
			} else {
				authgin.ServerErr(c, "failed to load time entry")
			}
			return
		}
		if te.UserID != u.ID {
			authgin.Forbidden(c, "not your time entry")
			return
		}
		if !te.IsRunning {
			authgin.BadRequest(c, "time entry is not running")
			return
		}

		end := time.Now()
		if req.EndTime != nil {
			end = *req.EndTime
		}
		if !end.After(te.StartTime) {
			authgin.BadRequest(c, "end time must be after start time")
			return
		}

		stopped, err := st.StopTimeEntry(c.Request.Context(), entryID, end)
		if err != nil {
			authgin.ServerErr(c, "failed to stop time entry")
			return
		}
		log.WithField("entry_id", entryID).Info("stopped time entry")
		c.JSON(http.StatusOK, stopped)
	}
}

func HandleTimeEntryUpdatePUT(st *store.Store, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, _, ok := caller(c, st)
		if !ok {
			return
		}
		entryID, ok := pathUUID(c, "entry_id")
		if !ok {
			return
		}
		te, err := st.TimeEntryByID(c.Request.Context(), entryID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				authgin.NotFound(c, "time entry not found")
			} else {
				authgin.ServerErr(c, "failed to load time entry")
			}
			return
		}
		if te.UserID != u.ID {
			authgin.Forbidden(c, "not your time entry")
			return
		}

		var req timeEntryUpdateReq
		if err := c.ShouldBindJSON(&req); err != nil {
			authgin.BadRequest(c, "invalid request body")
			return
		}
		if req.StartTime != nil {
			te.StartTime = *req.StartTime
		}
		if req.EndTime != nil {
			te.EndTime = req.EndTime
		}
		if req.Description != nil {
			te.Description = req.Description
		}
		if req.External != nil {
			te.External = *req.External
		}
		if req.Billable != nil {
			te.Billable = *req.Billable
		}
		if te.EndTime != nil && !te.EndTime.After(te.StartTime) {
			authgin.BadRequest(c, "end time must be after start time")
			return
		}

		// Moving the start can create an overlap with other entries.
		if req.StartTime != nil {
			overlap, err := st.HasOverlap(c.Request.Context(), u.ID, te.StartTime, te.ID)
			if err != nil {
				authgin.ServerErr(c, "failed to check overlapping entries")
				return
			}
			if overlap {
				authgin.BadRequest(c, "time entry overlaps with existing entry")
				return
			}
		}

		if err := st.UpdateTimeEntry(c.Request.Context(), te); err != nil {
			authgin.ServerErr(c, "failed to update time entry")
			return
		}
		log.WithField("entry_id", entryID).Info("updated time entry")
		c.JSON(http.StatusOK, te)
	}
}

// HandleTimeEntryActiveGET returns the caller's running entry, or null
// when nothing is being tracked.
func HandleTimeEntryActiveGET(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, _, ok := caller(c, st)
		if !ok {
			return
		}
		te, err := st.RunningEntry(c.Request.Context(), u.ID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusOK, nil)
			} else {
				authgin.ServerErr(c, "failed to load running entry")
			}
			return
		}
		c.JSON(http.StatusOK, te)
	}
}

// TimeSummary aggregates completed entries over a period.
type TimeSummary struct {
	TotalHours         float64        `json:"total_hours"`
	TotalEntries       int            `json:"total_entries"`
	AverageHoursPerDay float64        `json:"average_hours_per_day"`
	ProjectBreakdown   []ProjectHours `json:"project_breakdown"`
}

type ProjectHours struct {
	ProjectID   uuid.UUID `json:"project_id"`
	ProjectName string    `json:"project_name"`
	Hours       float64   `json:"hours"`
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// SummarizeEntries computes the summary over the given entries, which must
// be sorted by start time. Running entries count toward the total but
// contribute no hours. The daily average spans the first and last entry's
// calendar days inclusive.
func SummarizeEntries(entries []store.TimeEntry) TimeSummary {
	s := TimeSummary{TotalEntries: len(entries), ProjectBreakdown: []ProjectHours{}}
	byProject := make(map[uuid.UUID]*ProjectHours)
	for i := range entries {
		e := &entries[i]
		if e.EndTime == nil {
			continue
		}
		hours := e.EndTime.Sub(e.StartTime).Hours()
		s.TotalHours += hours

		ph, ok := byProject[e.ProjectID]
		if !ok {
			ph = &ProjectHours{ProjectID: e.ProjectID}
			if e.Project != nil {
				ph.ProjectName = e.Project.Name
			}
			byProject[e.ProjectID] = ph
		}
		ph.Hours += hours
	}

	for _, ph := range byProject {
		ph.Hours = round2(ph.Hours)
		s.ProjectBreakdown = append(s.ProjectBreakdown, *ph)
	}
	sort.Slice(s.ProjectBreakdown, func(i, j int) bool {
		return s.ProjectBreakdown[i].ProjectName < s.ProjectBreakdown[j].ProjectName
	})

	if len(entries) > 0 {
		first := entries[0].StartTime
		last := entries[len(entries)-1].StartTime
		days := int(last.Truncate(24*time.Hour).Sub(first.Truncate(24*time.Hour)).Hours()/24) + 1
		s.AverageHoursPerDay = round2(s.TotalHours / float64(days))
	}
	s.TotalHours = round2(s.TotalHours)
	return s
}

// HandleTimeEntrySummaryGET aggregates tracked time, filtered by
// start_time, end_time, project_id and user_id query params. Regular
// users only see their own time; the user_id filter is for managers.
func HandleTimeEntrySummaryGET(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, id, ok := caller(c, st)
		if !ok {
			return
		}

		var f store.EntryFilter
		if q := c.Query("start_time"); q != "" {
			t, err := time.Parse(time.RFC3339, q)
			if err != nil {
				authgin.BadRequest(c, "invalid start_time format")
				return
			}
			f.Start = &t
		}
		if q := c.Query("end_time"); q != "" {
			t, err := time.Parse(time.RFC3339, q)
			if err != nil {
				authgin.BadRequest(c, "invalid end_time format")
				return
			}
			f.End = &t
		}
		if q := c.Query("project_id"); q != "" {
			parsed, err := uuid.Parse(q)
			if err != nil {
				authgin.BadRequest(c, "invalid project_id format")
				return
			}
			f.ProjectID = &parsed
		}
		if authz.IsRegularUser(id) {
			f.UserID = &u.ID
		} else if q := c.Query("user_id"); q != "" {
			parsed, err := uuid.Parse(q)
			if err != nil {
				authgin.BadRequest(c, "invalid user_id format")
				return
			}
			f.UserID = &parsed
		}

		entries, err := st.EntriesForSummary(c.Request.Context(), f)
		if err != nil {
			authgin.ServerErr(c, "failed to load time entries")
			return
		}
		c.JSON(http.StatusOK, SummarizeEntries(entries))
	}
}

func HandleTimeEntryListGET(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, _, ok := caller(c, st)
		if !ok {
			return
		}
		page, pageSize, limit, offset := pageParams(c)

		var taskID *uuid.UUID
		if q := c.Query("task_id"); q != "" {
			parsed, err := uuid.Parse(q)
			if err != nil {
				authgin.BadRequest(c, "invalid task_id format")
				return
			}
			taskID = &parsed
		}

		entries, total, err := st.ListTimeEntries(c.Request.Context(), u.ID, taskID, limit, offset)
		if err != nil {
			authgin.ServerErr(c, "failed to list time entries")
			return
		}
		c.JSON(http.StatusOK, paginated(entries, total, page, pageSize))
	}
}
