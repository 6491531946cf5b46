package admission

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mimic/mimic/internal/platform/apperr"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(i *int) int {
	if i == nil {
		return 0
	}
	return *i
}

func collectIDs(rows pgx.Rows, err error) ([]int64, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// -- Admission --

type admissionRepoPG struct{ pool *pgxpool.Pool }

func NewAdmissionRepoPG(pool *pgxpool.Pool) AdmissionRepository {
	return &admissionRepoPG{pool: pool}
}

func (r *admissionRepoPG) conn(ctx context.Context) queryable {
	return r.pool
}

const admissionCols = `row_id, subject_id, hadm_id, admittime, dischtime, deathtime,
	admission_type, admission_location, discharge_location, insurance, language,
	religion, marital_status, ethnicity, edregtime, edouttime, diagnosis,
	hospital_expire_flag, has_chartevents_data`

func scanAdmission(row pgx.Row) (*Admission, error) {
	var a Admission
	var language, religion, marital, diagnosis *string
	var expire *int
	err := row.Scan(&a.RowID, &a.SubjectID, &a.HadmID, &a.AdmitTime, &a.DischTime, &a.DeathTime,
		&a.AdmissionType, &a.AdmissionLocation, &a.DischargeLocation, &a.Insurance, &language,
		&religion, &marital, &a.Ethnicity, &a.EDRegTime, &a.EDOutTime, &diagnosis,
		&expire, &a.HasCharteventsData)
	if err != nil {
		return nil, err
	}
	a.Language = deref(language)
	a.Religion = deref(religion)
	a.MaritalStatus = deref(marital)
	a.Diagnosis = deref(diagnosis)
	a.HospitalExpireFlag = derefInt(expire)
	return &a, nil
}

func (r *admissionRepoPG) list(ctx context.Context, sql string, args ...interface{}) ([]*Admission, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Admission
	for rows.Next() {
		a, err := scanAdmission(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

// GetByHadmID fails with a RecordNotFoundError when no row matches and with
// ErrMimic when more than one does.
func (r *admissionRepoPG) GetByHadmID(ctx context.Context, hadmID int64) (*Admission, error) {
	items, err := r.list(ctx, `SELECT `+admissionCols+` FROM admissions WHERE hadm_id = $1`, hadmID)
	if err != nil {
		return nil, err
	}
	switch len(items) {
	case 0:
		return nil, apperr.NotFound("admission", "hadm", hadmID)
	case 1:
		return items[0], nil
	default:
		return nil, fmt.Errorf("%w: %d admissions for hadm_id %d", apperr.ErrMimic, len(items), hadmID)
	}
}

func (r *admissionRepoPG) GetBySubjectID(ctx context.Context, subjectID int64) ([]*Admission, error) {
	return r.list(ctx, `SELECT `+admissionCols+` FROM admissions WHERE subject_id = $1 ORDER BY admittime`, subjectID)
}

func (r *admissionRepoPG) HadmIDsBySubject(ctx context.Context, subjectID int64) ([]int64, error) {
	return collectIDs(r.conn(ctx).Query(ctx,
		`SELECT hadm_id FROM admissions WHERE subject_id = $1 ORDER BY admittime`, subjectID))
}

// AdmissionCounts returns the subjects with the most admissions first.
func (r *admissionRepoPG) AdmissionCounts(ctx context.Context, limit int) ([]SubjectAdmissionCount, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT subject_id, COUNT(*) AS c FROM admissions
		GROUP BY subject_id ORDER BY c DESC, subject_id LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SubjectAdmissionCount
	for rows.Next() {
		var c SubjectAdmissionCount
		if err := rows.Scan(&c.SubjectID, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *admissionRepoPG) Keys(ctx context.Context) ([]int64, error) {
	return collectIDs(r.conn(ctx).Query(ctx, `SELECT hadm_id FROM admissions ORDER BY hadm_id`))
}

func (r *admissionRepoPG) Exists(ctx context.Context, hadmID int64) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM admissions WHERE hadm_id = $1)`, hadmID).Scan(&exists)
	return exists, err
}

func (r *admissionRepoPG) Count(ctx context.Context) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM admissions`).Scan(&n)
	return n, err
}

// -- Patient --

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewPatientRepoPG(pool *pgxpool.Pool) PatientRepository {
	return &patientRepoPG{pool: pool}
}

func (r *patientRepoPG) conn(ctx context.Context) queryable {
	return r.pool
}

func (r *patientRepoPG) GetBySubjectID(ctx context.Context, subjectID int64) (*Patient, error) {
	var p Patient
	err := r.conn(ctx).QueryRow(ctx, `SELECT row_id, subject_id, gender, dob, dod, dod_hosp, dod_ssn, expire_flag
		FROM patients WHERE subject_id = $1`, subjectID).
		Scan(&p.RowID, &p.SubjectID, &p.Gender, &p.DOB, &p.DOD, &p.DODHosp, &p.DODSSN, &p.ExpireFlag)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("patient", "subject", subjectID)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *patientRepoPG) Count(ctx context.Context) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patients`).Scan(&n)
	return n, err
}

// -- ICD-9 codes --

func listICD9(ctx context.Context, q queryable, sql string, args ...interface{}) ([]ICD9, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ICD9
	for rows.Next() {
		var c ICD9
		var seq *int
		var code, short, long *string
		if err := rows.Scan(&c.RowID, &c.SubjectID, &c.HadmID, &seq, &code, &short, &long); err != nil {
			return nil, err
		}
		c.SeqNum = derefInt(seq)
		c.Code = deref(code)
		c.ShortTitle = deref(short)
		c.LongTitle = deref(long)
		items = append(items, c)
	}
	return items, rows.Err()
}

type diagnosisRepoPG struct{ pool *pgxpool.Pool }

func NewDiagnosisRepoPG(pool *pgxpool.Pool) DiagnosisRepository {
	return &diagnosisRepoPG{pool: pool}
}

func (r *diagnosisRepoPG) conn(ctx context.Context) queryable {
	return r.pool
}

func (r *diagnosisRepoPG) ListByHadmID(ctx context.Context, hadmID int64) ([]Diagnosis, error) {
	return listICD9(ctx, r.conn(ctx), `SELECT di.row_id, di.subject_id, di.hadm_id, di.seq_num, di.icd9_code,
		d.short_title, d.long_title
		FROM diagnoses_icd di LEFT JOIN d_icd_diagnoses d ON d.icd9_code = di.icd9_code
		WHERE di.hadm_id = $1 ORDER BY di.seq_num`, hadmID)
}

// HeartFailureHadmIDs returns admissions coded with ICD-9 428.x heart
// failure.
func (r *diagnosisRepoPG) HeartFailureHadmIDs(ctx context.Context) ([]int64, error) {
	return collectIDs(r.conn(ctx).Query(ctx,
		`SELECT DISTINCT hadm_id FROM diagnoses_icd WHERE icd9_code LIKE '428%' ORDER BY hadm_id`))
}

type procedureRepoPG struct{ pool *pgxpool.Pool }

func NewProcedureRepoPG(pool *pgxpool.Pool) ProcedureRepository {
	return &procedureRepoPG{pool: pool}
}

func (r *procedureRepoPG) conn(ctx context.Context) queryable {
	return r.pool
}

func (r *procedureRepoPG) ListByHadmID(ctx context.Context, hadmID int64) ([]Procedure, error) {
	return listICD9(ctx, r.conn(ctx), `SELECT pi.row_id, pi.subject_id, pi.hadm_id, pi.seq_num, pi.icd9_code,
		p.short_title, p.long_title
		FROM procedures_icd pi LEFT JOIN d_icd_procedures p ON p.icd9_code = pi.icd9_code
		WHERE pi.hadm_id = $1 ORDER BY pi.seq_num`, hadmID)
}
