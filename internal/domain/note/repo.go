package note

import "context"

// SubjectNoteCount is the number of notes of one admission of a subject.
type SubjectNoteCount struct {
	HadmID int64 `json:"hadm_id"`
	Count  int   `json:"count"`
}

type NoteEventRepository interface {
	GetByRowID(ctx context.Context, rowID int64) (*NoteEvent, error)
	ListByHadmID(ctx context.Context, hadmID int64) ([]*NoteEvent, error)
	RowIDsByHadmID(ctx context.Context, hadmID int64) ([]int64, error)
	HadmIDByRowID(ctx context.Context, rowID int64) (int64, error)
	Text(ctx context.Context, rowID int64) (string, error)
	Categories(ctx context.Context) ([]string, error)
	CountsBySubject(ctx context.Context, subjectID int64) ([]SubjectNoteCount, error)
	ListByCategory(ctx context.Context, category string, limit, offset int) ([]*NoteEvent, int, error)
	DischargeReports(ctx context.Context, limit int) ([]*NoteEvent, error)
	SampleHadmIDs(ctx context.Context, limit int) ([]int64, error)
	Keys(ctx context.Context) ([]int64, error)
	Count(ctx context.Context) (int, error)
}
