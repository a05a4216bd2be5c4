package service

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/blueridge-hs/registrar-api/internal/dto"
	"github.com/blueridge-hs/registrar-api/internal/models"
	appErrors "github.com/blueridge-hs/registrar-api/pkg/errors"
)

type sectionStore interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.Section, error)
	ListByCourseIDs(ctx context.Context, courseIDs []string) ([]models.Section, error)
	AdjustEnrolledCount(ctx context.Context, exec sqlx.ExtContext, sectionID string, delta int) error
}

type enrollmentStore interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	ListActiveByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error)
	ExistsActive(ctx context.Context, studentID, courseID string) (bool, error)
	Create(ctx context.Context, exec sqlx.ExtContext, enrollment *models.Enrollment) error
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.EnrollmentStatus, droppedAt *time.Time) error
}

type rosterReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ListActive(ctx context.Context) ([]models.Student, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.Student, error)
}

type catalogReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	ListActive(ctx context.Context) ([]models.Course, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.Course, error)
}

type completionLedger interface {
	ListCompleted(ctx context.Context, studentID string) ([]models.CompletionRecord, error)
}

type requirementReader interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.PrerequisiteRequirement, error)
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type assignmentMetrics interface {
	ObserveBatch(duration time.Duration, assigned, failures int)
	EnrollmentCommitted()
	EnrollmentDropped()
}

type statsInvalidator interface {
	InvalidateStats(ctx context.Context) error
}

// AssignmentConfig governs batch sizing behaviour.
type AssignmentConfig struct {
	DefaultFraction float64
	MinCourseLoad   int
	MaxCourseLoad   int
}

// AssignmentService places students into course sections. It filters the
// catalog by prerequisite eligibility, picks the least-loaded section that
// still has a seat and no timetable clash, and commits each placement in its
// own transaction so one bad student never poisons a whole batch.
type AssignmentService struct {
	mu           sync.Mutex
	enrollments  enrollmentStore
	sections     sectionStore
	students     rosterReader
	courses      catalogReader
	completions  completionLedger
	requirements requirementReader
	tx           txProvider
	metrics      assignmentMetrics
	stats        statsInvalidator
	validator    *validator.Validate
	logger       *zap.Logger
	cfg          AssignmentConfig

	shuffle func(n int, swap func(i, j int))
	now     func() time.Time
}

// NewAssignmentService wires the assignment engine. Metrics and stats
// invalidation are optional; nil disables them.
func NewAssignmentService(
	enrollments enrollmentStore,
	sections sectionStore,
	students rosterReader,
	courses catalogReader,
	completions completionLedger,
	requirements requirementReader,
	tx txProvider,
	metrics assignmentMetrics,
	stats statsInvalidator,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg AssignmentConfig,
) *AssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultFraction <= 0 || cfg.DefaultFraction > 1 {
		cfg.DefaultFraction = 0.6
	}
	if cfg.MinCourseLoad <= 0 {
		cfg.MinCourseLoad = 5
	}
	if cfg.MaxCourseLoad < cfg.MinCourseLoad {
		cfg.MaxCourseLoad = cfg.MinCourseLoad
	}
	return &AssignmentService{
		enrollments:  enrollments,
		sections:     sections,
		students:     students,
		courses:      courses,
		completions:  completions,
		requirements: requirements,
		tx:           tx,
		metrics:      metrics,
		stats:        stats,
		validator:    validate,
		logger:       logger,
		cfg:          cfg,
		shuffle:      rand.Shuffle,
		now:          time.Now,
	}
}

// batchState is the in-memory working set for one batch run. Section counts
// and busy blocks are mutated here as placements commit, so later decisions
// in the same run see earlier ones without re-reading the database.
type batchState struct {
	sections     map[string][]*models.Section
	requirements map[string][]models.PrerequisiteRequirement
	busy         map[string][]models.TimeBlock
	enrolled     map[string]map[string]bool
}

// RunBatch assigns each requested student to up to the target number of
// eligible, clash-free course sections. Per-student failures are recorded in
// the result and never abort the run; only structural problems (empty
// catalog, empty roster, bad payload) return an error.
func (s *AssignmentService) RunBatch(ctx context.Context, req dto.AssignmentBatchRequest) (*models.BatchResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment batch payload")
	}
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	startedAt := s.now()

	catalog, err := s.resolveCatalog(ctx, req.CourseIDs)
	if err != nil {
		return nil, err
	}
	if len(catalog) == 0 {
		return nil, appErrors.Clone(appErrors.ErrEmptyCatalog, "no courses available for assignment")
	}

	state, err := s.buildState(ctx, catalog)
	if err != nil {
		return nil, err
	}
	target := s.targetLoad(len(catalog), req.Fraction)

	result := &models.BatchResult{StartedAt: startedAt}
	process := func(student models.Student) {
		outcome := s.assignStudent(ctx, state, student, catalog, target)
		if outcome.Failure != "" {
			result.Failures++
		}
		result.TotalAssigned += outcome.Assigned
		result.Learners = append(result.Learners, outcome)
	}

	if len(req.StudentIDs) > 0 {
		found, err := s.students.ListByIDs(ctx, req.StudentIDs)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
		}
		index := make(map[string]models.Student, len(found))
		for _, student := range found {
			index[student.ID] = student
		}
		for _, id := range req.StudentIDs {
			student, ok := index[id]
			if !ok {
				result.Failures++
				result.Learners = append(result.Learners, models.LearnerOutcome{
					StudentID: id,
					Target:    target,
					Failure:   "student not found",
				})
				continue
			}
			process(student)
		}
	} else {
		roster, err := s.students.ListActive(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
		}
		if len(roster) == 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "no students to assign")
		}
		// Seniors first. The stable sort keeps the roster's student-number
		// order within a grade level.
		sort.SliceStable(roster, func(i, j int) bool {
			return models.PriorityForGradeLevel(roster[i].GradeLevel) > models.PriorityForGradeLevel(roster[j].GradeLevel)
		})
		for _, student := range roster {
			process(student)
		}
	}

	result.Duration = s.now().Sub(startedAt)
	if s.metrics != nil {
		s.metrics.ObserveBatch(result.Duration, result.TotalAssigned, result.Failures)
	}
	if result.TotalAssigned > 0 {
		s.invalidateStats(ctx)
	}
	s.logger.Info("assignment batch finished",
		zap.Int("students", len(result.Learners)),
		zap.Int("assigned", result.TotalAssigned),
		zap.Int("failures", result.Failures),
		zap.Duration("duration", result.Duration))
	return result, nil
}

func (s *AssignmentService) resolveCatalog(ctx context.Context, courseIDs []string) ([]models.Course, error) {
	if len(courseIDs) > 0 {
		catalog, err := s.courses.ListByIDs(ctx, courseIDs)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load courses")
		}
		return catalog, nil
	}
	catalog, err := s.courses.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load courses")
	}
	return catalog, nil
}

func (s *AssignmentService) buildState(ctx context.Context, catalog []models.Course) (*batchState, error) {
	courseIDs := make([]string, len(catalog))
	for i, course := range catalog {
		courseIDs[i] = course.ID
	}
	sections, err := s.sections.ListByCourseIDs(ctx, courseIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sections")
	}
	state := &batchState{
		sections:     make(map[string][]*models.Section, len(catalog)),
		requirements: make(map[string][]models.PrerequisiteRequirement, len(catalog)),
		busy:         make(map[string][]models.TimeBlock),
		enrolled:     make(map[string]map[string]bool),
	}
	for i := range sections {
		section := sections[i]
		state.sections[section.CourseID] = append(state.sections[section.CourseID], &section)
	}
	return state, nil
}

// targetLoad converts the catalog size into a per-student course count,
// clamped to the configured band.
func (s *AssignmentService) targetLoad(catalogSize int, fraction float64) int {
	if fraction <= 0 {
		fraction = s.cfg.DefaultFraction
	}
	target := int(math.Round(float64(catalogSize) * fraction))
	if target < s.cfg.MinCourseLoad {
		target = s.cfg.MinCourseLoad
	}
	if target > s.cfg.MaxCourseLoad {
		target = s.cfg.MaxCourseLoad
	}
	return target
}

func (s *AssignmentService) assignStudent(ctx context.Context, state *batchState, student models.Student, catalog []models.Course, target int) models.LearnerOutcome {
	outcome := models.LearnerOutcome{
		StudentID: student.ID,
		Priority:  models.PriorityForGradeLevel(student.GradeLevel),
		Target:    target,
	}

	completions, err := s.completions.ListCompleted(ctx, student.ID)
	if err != nil {
		s.logger.Warn("failed to load completion history", zap.String("student_id", student.ID), zap.Error(err))
		outcome.Failure = "failed to load completion history"
		return outcome
	}
	best := models.BestCompletions(completions)

	if err := s.seedStudentState(ctx, state, student.ID); err != nil {
		s.logger.Warn("failed to load current enrollments", zap.String("student_id", student.ID), zap.Error(err))
		outcome.Failure = "failed to load current enrollments"
		return outcome
	}

	candidates := make([]models.Course, 0, len(catalog))
	for _, course := range catalog {
		if state.enrolled[student.ID][course.ID] {
			continue
		}
		reqs, ok := state.requirements[course.ID]
		if !ok {
			reqs, err = s.requirements.ListByCourse(ctx, course.ID)
			if err != nil {
				s.logger.Warn("failed to load prerequisites", zap.String("course_id", course.ID), zap.Error(err))
				outcome.Failure = "failed to load prerequisites"
				return outcome
			}
			state.requirements[course.ID] = reqs
		}
		if EvaluateRequirements(reqs, best).Meets {
			candidates = append(candidates, course)
		}
	}
	if len(candidates) == 0 {
		outcome.Failure = "no eligible courses"
		return outcome
	}

	// Shuffling candidates spreads students across electives instead of
	// piling everyone onto the catalog's first few courses.
	s.shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})

	for _, course := range candidates {
		if outcome.Assigned >= target {
			break
		}
		section := findBestSection(state.sections[course.ID], state.busy[student.ID])
		if section == nil {
			continue
		}
		enrollment := &models.Enrollment{
			StudentID:  student.ID,
			CourseID:   course.ID,
			SectionID:  section.ID,
			Status:     models.EnrollmentStatusActive,
			Priority:   outcome.Priority,
			EnrolledAt: s.now(),
		}
		if err := s.commitAssignment(ctx, enrollment); err != nil {
			s.logger.Warn("assignment commit failed",
				zap.String("student_id", student.ID),
				zap.String("section_id", section.ID),
				zap.Error(err))
			continue
		}
		section.EnrolledCount++
		state.busy[student.ID] = append(state.busy[student.ID], section.TimeBlock)
		state.enrolled[student.ID][course.ID] = true
		outcome.Assigned++
	}

	if outcome.Assigned == 0 {
		outcome.Failure = "no section with capacity and a clash-free slot"
	}
	return outcome
}

// seedStudentState loads a student's current active enrollments into the
// working set once per batch, so pre-existing courses block duplicates and
// their meeting times count as busy.
func (s *AssignmentService) seedStudentState(ctx context.Context, state *batchState, studentID string) error {
	if _, ok := state.enrolled[studentID]; ok {
		return nil
	}
	existing, err := s.enrollments.ListActiveByStudent(ctx, studentID)
	if err != nil {
		return err
	}
	held := make(map[string]bool, len(existing))
	blocks := make([]models.TimeBlock, 0, len(existing))
	for _, detail := range existing {
		held[detail.CourseID] = true
		blocks = append(blocks, detail.TimeBlock)
	}
	state.enrolled[studentID] = held
	state.busy[studentID] = blocks
	return nil
}

// findBestSection returns the least-loaded section that still has a free
// seat and does not clash with any busy block, or nil when none
// qualifies. Ties keep the earliest section so repeated runs with the same
// inputs behave the same.
func findBestSection(sections []*models.Section, busy []models.TimeBlock) *models.Section {
	var best *models.Section
	for _, section := range sections {
		if !section.HasCapacity() {
			continue
		}
		if clashesAny(section.TimeBlock, busy) {
			continue
		}
		if best == nil || section.EnrolledCount < best.EnrolledCount {
			best = section
		}
	}
	return best
}

func clashesAny(block models.TimeBlock, busy []models.TimeBlock) bool {
	for _, other := range busy {
		if block.Overlaps(other) {
			return true
		}
	}
	return false
}

// commitAssignment persists one enrollment and its seat increment in a
// single transaction. The capacity guard in the section update is the last
// line of defence against oversubscription.
func (s *AssignmentService) commitAssignment(ctx context.Context, enrollment *models.Enrollment) error {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.enrollments.Create(ctx, tx, enrollment); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
		return err
	}
	if err = s.sections.AdjustEnrolledCount(ctx, tx, enrollment.SectionID, 1); err != nil {
		if !errors.Is(err, appErrors.ErrCapacityExceeded) {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update section count")
		}
		return err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit enrollment transaction")
		return err
	}
	if s.metrics != nil {
		s.metrics.EnrollmentCommitted()
	}
	return nil
}

// EnrollOne places a single student into the best available section of one
// course. Unmet recommended prerequisites log a warning but do not block;
// unmet required ones do.
func (s *AssignmentService) EnrollOne(ctx context.Context, studentID, courseID string) (*models.Enrollment, error) {
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch student")
	}
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch course")
	}

	exists, err := s.enrollments.ExistsActive(ctx, studentID, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing enrollment")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student already has an active enrollment in this course")
	}

	reqs, err := s.requirements.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load prerequisites")
	}
	completions, err := s.completions.ListCompleted(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load completion history")
	}
	eligibility := EvaluateRequirements(reqs, models.BestCompletions(completions))
	if !eligibility.Meets {
		if !eligibility.Overridable {
			return nil, appErrors.Clone(appErrors.ErrPrerequisiteNotMet, eligibility.Reason)
		}
		s.logger.Warn("enrolling despite unmet recommended prerequisites",
			zap.String("student_id", studentID),
			zap.String("course_id", courseID),
			zap.String("reason", eligibility.Reason))
	}

	sections, err := s.sections.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sections")
	}
	current, err := s.enrollments.ListActiveByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current enrollments")
	}
	busy := make([]models.TimeBlock, 0, len(current))
	for _, detail := range current {
		busy = append(busy, detail.TimeBlock)
	}
	pool := make([]*models.Section, len(sections))
	for i := range sections {
		pool[i] = &sections[i]
	}
	section := findBestSection(pool, busy)
	if section == nil {
		return nil, appErrors.Clone(appErrors.ErrNoAvailableSection, "no section with capacity and a clash-free slot")
	}

	enrollment := &models.Enrollment{
		StudentID:  studentID,
		CourseID:   course.ID,
		SectionID:  section.ID,
		Status:     models.EnrollmentStatusActive,
		Priority:   models.PriorityForGradeLevel(student.GradeLevel),
		EnrolledAt: s.now(),
	}
	if err := s.commitAssignment(ctx, enrollment); err != nil {
		if errors.Is(err, appErrors.ErrCapacityExceeded) {
			return nil, appErrors.Clone(appErrors.ErrNoAvailableSection, "section filled before enrollment could commit")
		}
		return nil, err
	}

	s.invalidateStats(ctx)
	s.logger.Info("student enrolled",
		zap.String("student_id", studentID),
		zap.String("course_id", courseID),
		zap.String("section_id", section.ID))
	return enrollment, nil
}

// DropEnrollment marks an active enrollment dropped and releases its seat.
func (s *AssignmentService) DropEnrollment(ctx context.Context, enrollmentID string) error {
	if s.tx == nil {
		return appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch enrollment")
	}
	if enrollment.Status != models.EnrollmentStatusActive {
		return appErrors.Clone(appErrors.ErrConflict, "enrollment is not active")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	droppedAt := s.now()
	if err = s.enrollments.UpdateStatus(ctx, tx, enrollmentID, models.EnrollmentStatusDropped, &droppedAt); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollment status")
		return err
	}
	if err = s.sections.AdjustEnrolledCount(ctx, tx, enrollment.SectionID, -1); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update section count")
		return err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit drop transaction")
		return err
	}

	if s.metrics != nil {
		s.metrics.EnrollmentDropped()
	}
	s.invalidateStats(ctx)
	s.logger.Info("enrollment dropped",
		zap.String("enrollment_id", enrollmentID),
		zap.String("student_id", enrollment.StudentID))
	return nil
}

// ListEnrollments returns enrollment details matching the filter, with the
// total row count for pagination.
func (s *AssignmentService) ListEnrollments(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	details, total, err := s.enrollments.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return details, total, nil
}

// StudentSchedule returns a student's active enrollments with course and
// meeting-time details.
func (s *AssignmentService) StudentSchedule(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch student")
	}
	details, err := s.enrollments.ListActiveByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return details, nil
}

func (s *AssignmentService) invalidateStats(ctx context.Context) {
	if s.stats == nil {
		return
	}
	if err := s.stats.InvalidateStats(ctx); err != nil {
		s.logger.Warn("failed to invalidate statistics cache", zap.Error(err))
	}
}
