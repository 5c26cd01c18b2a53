package domain

import (
	"sort"
	"time"
)

const (
	SessionGapThreshold     = 20 * time.Minute
	SessionGapThresholdMs   = int64(SessionGapThreshold / time.Millisecond)
	PlanningStreakThreshold = 5
)

// Segment splits an ordered heartbeat sequence into sessions.
func Segment(heartbeats []Heartbeat) []Session {
	b := NewSessionBuilder()
	for _, h := range heartbeats {
		b.Push(h)
	}
	return b.Finish()
}

// SessionBuilder applies the segmentation rules one heartbeat at a time.
// Segment is Push over every heartbeat followed by Finish, so incremental
// and batch results cannot drift apart.
type SessionBuilder struct {
	closed []Session
	open   *openSession
}

type openSession struct {
	start          int64
	end            int64
	heartbeatCount int
	projects       map[string]struct{}
	codingMs       int64
	planningMs     int64
	segments       []ActivitySegment

	activityStart  int64
	runPlanning    bool
	planningStreak int
}

func NewSessionBuilder() *SessionBuilder {
	return &SessionBuilder{}
}

func (b *SessionBuilder) Push(h Heartbeat) {
	if b.open == nil {
		b.open = newOpenSession(h)
		return
	}

	o := b.open
	ts := h.Timestamp
	if ts < o.end {
		ts = o.end
	}

	if ts-o.end > SessionGapThresholdMs {
		o.flush(o.end)
		b.closed = append(b.closed, o.close())
		b.open = newOpenSession(h)
		return
	}

	planning := h.IsPlanning()
	switch {
	case planning != o.runPlanning:
		o.flush(ts)
		o.activityStart = ts
		o.runPlanning = planning
		o.planningStreak = 0
		if planning {
			o.planningStreak = 1
		}
	case planning:
		o.planningStreak++
	}
	o.end = ts
	o.heartbeatCount++
	o.addProject(h.Project)
}

// Snapshot materializes closed sessions plus the open one as if it were
// flushed at its current end. The builder state is left untouched.
func (b *SessionBuilder) Snapshot() []Session {
	out := make([]Session, 0, len(b.closed)+1)
	out = append(out, cloneSessions(b.closed)...)
	if b.open != nil {
		o := b.open.clone()
		o.flush(o.end)
		out = append(out, o.close())
	}
	return out
}

// Finish flushes the open session and returns every session. The builder
// is empty afterwards.
func (b *SessionBuilder) Finish() []Session {
	if b.open != nil {
		b.open.flush(b.open.end)
		b.closed = append(b.closed, b.open.close())
		b.open = nil
	}
	out := b.closed
	b.closed = nil
	if out == nil {
		out = []Session{}
	}
	return out
}

func (b *SessionBuilder) Empty() bool {
	return b.open == nil && len(b.closed) == 0
}

func newOpenSession(h Heartbeat) *openSession {
	o := &openSession{
		start:          h.Timestamp,
		end:            h.Timestamp,
		heartbeatCount: 1,
		projects:       map[string]struct{}{},
		activityStart:  h.Timestamp,
		runPlanning:    h.IsPlanning(),
	}
	if o.runPlanning {
		o.planningStreak = 1
	}
	o.addProject(h.Project)
	return o
}

func (o *openSession) addProject(project string) {
	if project != "" {
		o.projects[project] = struct{}{}
	}
}

// flush attributes [activityStart, t) to the run's resolved type and appends
// one segment for it. A planning run only counts as planning once its streak
// reached the threshold, so a short planning run yields a coding segment of
// its own between its coding neighbours.
func (o *openSession) flush(t int64) {
	if t <= o.activityStart {
		return
	}
	kind := ActivityCoding
	if o.runPlanning && o.planningStreak >= PlanningStreakThreshold {
		kind = ActivityPlanning
	}
	elapsed := t - o.activityStart
	if kind == ActivityPlanning {
		o.planningMs += elapsed
	} else {
		o.codingMs += elapsed
	}

	o.segments = append(o.segments, ActivitySegment{Start: o.activityStart, End: t, Type: kind})
	o.activityStart = t
}

func (o *openSession) close() Session {
	projects := make([]string, 0, len(o.projects))
	for p := range o.projects {
		projects = append(projects, p)
	}
	sort.Strings(projects)
	segments := o.segments
	if segments == nil {
		segments = []ActivitySegment{}
	}
	return Session{
		Start:          o.start,
		End:            o.end,
		DurationMs:     o.end - o.start,
		HeartbeatCount: o.heartbeatCount,
		Projects:       projects,
		CodingMs:       o.codingMs,
		PlanningMs:     o.planningMs,
		Segments:       segments,
	}
}

func (o *openSession) clone() *openSession {
	cp := *o
	cp.projects = make(map[string]struct{}, len(o.projects))
	for p := range o.projects {
		cp.projects[p] = struct{}{}
	}
	cp.segments = append([]ActivitySegment(nil), o.segments...)
	return &cp
}

func cloneSessions(in []Session) []Session {
	out := make([]Session, len(in))
	for i, s := range in {
		projects := make([]string, len(s.Projects))
		copy(projects, s.Projects)
		segments := make([]ActivitySegment, len(s.Segments))
		copy(segments, s.Segments)
		s.Projects, s.Segments = projects, segments
		out[i] = s
	}
	return out
}
