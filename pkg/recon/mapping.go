package recon

import (
	"strconv"
	"strings"
	"time"

	"github.com/medrelay-io/medrelay-engine/pkg/models"
)

// Field-alias tables. Hospital systems name the same concept differently
// (HIS vendors, regional conventions); each canonical field lists the
// column names accepted for it, first match wins. Template authors can
// also just alias columns in SQL, so these tables only need to cover the
// common shapes.

var patientAliases = map[string][]string{
	"source_id":      {"PATIENT_ID", "PATIENTID", "PAT_ID"},
	"visit_id":       {"VISIT_ID", "VISITID", "VISIT_NO"},
	"name":           {"NAME", "PATIENT_NAME"},
	"gender":         {"GENDER", "SEX"},
	"birth_date":     {"BIRTH_DATE", "BIRTHDAY", "DATE_OF_BIRTH", "DOB"},
	"department":     {"DEPARTMENT", "DEPT_NAME", "DEPT"},
	"bed_no":         {"BED_NO", "BED_LABEL", "BED"},
	"admission_time": {"ADMISSION_TIME", "ADMISSION_DATE_TIME", "ADMIT_TIME", "IN_DATE"},
}

var labAliases = map[string][]string{
	"patient_id":      {"PATIENT_ID", "PATIENTID", "PAT_ID"},
	"visit_id":        {"VISIT_ID", "VISITID", "VISIT_NO"},
	"lab_name":        {"LAB_NAME", "ITEM_NAME", "REPORT_ITEM_NAME", "TEST_NAME"},
	"result_value":    {"RESULT_VALUE", "RESULT", "QUANTITATIVE_RESULT"},
	"unit":            {"UNIT", "UNITS"},
	"reference_range": {"REFERENCE_RANGE", "PRINT_CONTEXT", "REF_RANGE"},
	"abnormal_flag":   {"ABNORMAL_FLAG", "ABNORMAL_INDICATOR", "RESULT_STATUS"},
	"report_time":     {"REPORT_TIME", "RESULTS_RPT_DATE_TIME", "REPORT_DATE"},
}

var orderAliases = map[string][]string{
	"patient_id":  {"PATIENT_ID", "PATIENTID", "PAT_ID"},
	"visit_id":    {"VISIT_ID", "VISITID", "VISIT_NO"},
	"order_name":  {"ORDER_NAME", "ORDER_TEXT", "DRUG_NAME"},
	"order_date":  {"ORDER_DATE", "START_DATE_TIME", "ENTER_DATE_TIME"},
	"repeat_flag": {"REPEAT_FLAG", "REPEAT_INDICATOR", "ORDER_TYPE"},
	"dosage":      {"DOSAGE", "DOSAGE_VALUE", "DOSE"},
	"frequency":   {"FREQUENCY", "ADMINISTRATION", "FREQ"},
	"stop_time":   {"STOP_TIME", "STOP_DATE_TIME", "END_DATE_TIME"},
}

var examAliases = map[string][]string{
	"examination_id": {"EXAMINATION_ID", "EXAM_NO", "EXAM_ID", "REPORT_ID"},
	"patient_id":     {"PATIENT_ID", "PATIENTID", "PAT_ID"},
	"visit_id":       {"VISIT_ID", "VISITID", "VISIT_NO"},
	"exam_name":      {"EXAM_NAME", "EXAM_ITEM", "STUDY_NAME"},
	"finding":        {"FINDING", "DESCRIPTION", "EXAM_FINDING"},
	"conclusion":     {"CONCLUSION", "IMPRESSION", "DIAGNOSIS"},
	"report_time":    {"REPORT_TIME", "REPORT_DATE_TIME", "REPORT_DATE"},
}

var freeTextAliases = map[string][]string{
	"source_id":    {"SOURCE_ID", "RECORD_ID", "ID", "FILE_NO"},
	"source_table": {"SOURCE_TABLE", "TABLE_NAME"},
	"patient_id":   {"PATIENT_ID", "PATIENTID", "PAT_ID"},
	"visit_id":     {"VISIT_ID", "VISITID", "VISIT_NO"},
	"title":        {"TITLE", "DOC_TITLE", "RECORD_TITLE"},
	"content":      {"CONTENT", "TEXT", "RECORD_CONTENT"},
	"doc_time":     {"DOC_TIME", "RECORD_TIME", "CREATE_DATE_TIME"},
	"delete_mark":  {"DELETE_MARK", "DELETED", "DEL_FLAG"},
}

// firstString returns the first non-empty value among the aliases for a
// canonical field.
func firstString(rec models.SourceRecord, aliases map[string][]string, field string) string {
	for _, alias := range aliases[field] {
		if v := rec.GetString(alias); v != "" {
			return v
		}
	}
	return ""
}

// firstTime returns the first parseable timestamp among the aliases. An
// unparseable non-blank value is an error so the row can be dropped.
func firstTime(rec models.SourceRecord, aliases map[string][]string, field string) (*time.Time, error) {
	for _, alias := range aliases[field] {
		t, err := rec.GetTime(alias)
		if err != nil {
			return nil, err
		}
		if t != nil {
			return t, nil
		}
	}
	return nil, nil
}

// parseBoolFlag interprets source boolean markers: "1", "true", "Y",
// "yes", "L" (legacy long-term order marker) all mean true.
func parseBoolFlag(s string) bool {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "1", "TRUE", "Y", "YES", "L":
		return true
	}
	if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		return n != 0
	}
	return false
}
