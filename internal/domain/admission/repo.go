package admission

import "context"

type AdmissionRepository interface {
	GetByHadmID(ctx context.Context, hadmID int64) (*Admission, error)
	GetBySubjectID(ctx context.Context, subjectID int64) ([]*Admission, error)
	HadmIDsBySubject(ctx context.Context, subjectID int64) ([]int64, error)
	AdmissionCounts(ctx context.Context, limit int) ([]SubjectAdmissionCount, error)
	Keys(ctx context.Context) ([]int64, error)
	Exists(ctx context.Context, hadmID int64) (bool, error)
	Count(ctx context.Context) (int, error)
}

type PatientRepository interface {
	GetBySubjectID(ctx context.Context, subjectID int64) (*Patient, error)
	Count(ctx context.Context) (int, error)
}

type DiagnosisRepository interface {
	ListByHadmID(ctx context.Context, hadmID int64) ([]Diagnosis, error)
	HeartFailureHadmIDs(ctx context.Context) ([]int64, error)
}

type ProcedureRepository interface {
	ListByHadmID(ctx context.Context, hadmID int64) ([]Procedure, error)
}
