package tasks

import (
    "time"
)

// NoDueDate is the DueDateCounts key for tasks without a due date.
const NoDueDate = "No Due Date"

// DueBuckets groups tasks by due date relative to the day Statistics ran.
type DueBuckets struct {
    Overdue  int `json:"overdue"`
    Today    int `json:"today"`
    Upcoming int `json:"upcoming"`
    None     int `json:"none"`
}

// Stats aggregates every lane except Trash.
type Stats struct {
    NumLanes      int            `json:"num_lanes"`
    TotalTasks    int            `json:"total_tasks"`
    LaneCounts    map[string]int `json:"tasks_per_lane"`
    TagCounts     map[string]int `json:"tag_counts"`
    DueDateCounts map[string]int `json:"due_date_counts"`
    DueBuckets    DueBuckets     `json:"due_buckets"`
    GeneratedAt   time.Time      `json:"generated_at"`
}

// Statistics reads every lane once. Trash is never counted.
func (m *Manager) Statistics() (Stats, error) {
    now := m.now()
    st := Stats{
        LaneCounts:    map[string]int{},
        TagCounts:     map[string]int{},
        DueDateCounts: map[string]int{},
        GeneratedAt:   now,
    }
    lanes, err := m.lanes.ListLanes()
    if err != nil { return st, err }
    today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

    for _, lane := range lanes {
        ts, err := m.laneTasks(lane)
        if err != nil { return st, err }
        st.LaneCounts[lane] = len(ts)
        st.TotalTasks += len(ts)
        for _, t := range ts {
            for _, tag := range t.Tags {
                st.TagCounts[tag]++
            }
            if t.Due.IsZero() {
                st.DueDateCounts[NoDueDate]++
                st.DueBuckets.None++
                continue
            }
            st.DueDateCounts[t.DueString()]++
            switch due := t.Due.UTC(); {
            case due.Before(today):
                st.DueBuckets.Overdue++
            case due.Equal(today):
                st.DueBuckets.Today++
            default:
                st.DueBuckets.Upcoming++
            }
        }
    }
    st.NumLanes = len(lanes)
    return st, nil
}
