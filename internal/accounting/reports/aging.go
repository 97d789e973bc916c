package reports

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OpenDocument is an unpaid invoice or bill feeding the aging report.
type OpenDocument struct {
	ID          uuid.UUID       `json:"id"`
	Number      string          `json:"number"`
	PartyName   string          `json:"party_name"`
	DocDate     time.Time       `json:"doc_date"`
	Outstanding decimal.Decimal `json:"outstanding"`
}

// AgingBucket labels, ordered oldest-last.
const (
	BucketCurrent = "CURRENT"
	Bucket1To30   = "1-30"
	Bucket31To60  = "31-60"
	Bucket61To90  = "61-90"
	BucketOver90  = ">90"
)

// AgingRow is one open document with its assigned bucket.
type AgingRow struct {
	Document    OpenDocument `json:"document"`
	DaysOverdue int          `json:"days_overdue"`
	Bucket      string       `json:"bucket"`
}

// AgingReport groups open documents by age as of a reference date.
type AgingReport struct {
	AsOf    time.Time                  `json:"as_of"`
	Rows    []AgingRow                 `json:"rows"`
	Buckets map[string]decimal.Decimal `json:"buckets"`
	Total   decimal.Decimal            `json:"total"`
}

// BuildAging assigns each open document to a bucket by whole days elapsed
// between its document date and asOf. A document dated 45 days before asOf
// lands in the 31-60 bucket.
func BuildAging(asOf time.Time, docs []OpenDocument) AgingReport {
	report := AgingReport{
		AsOf: asOf,
		Buckets: map[string]decimal.Decimal{
			BucketCurrent: decimal.Zero,
			Bucket1To30:   decimal.Zero,
			Bucket31To60:  decimal.Zero,
			Bucket61To90:  decimal.Zero,
			BucketOver90:  decimal.Zero,
		},
	}

	for _, doc := range docs {
		if !doc.Outstanding.IsPositive() {
			continue
		}
		days := daysBetween(doc.DocDate, asOf)
		bucket := bucketFor(days)
		report.Rows = append(report.Rows, AgingRow{Document: doc, DaysOverdue: days, Bucket: bucket})
		report.Buckets[bucket] = report.Buckets[bucket].Add(doc.Outstanding)
		report.Total = report.Total.Add(doc.Outstanding)
	}

	sort.Slice(report.Rows, func(i, j int) bool {
		if report.Rows[i].DaysOverdue != report.Rows[j].DaysOverdue {
			return report.Rows[i].DaysOverdue > report.Rows[j].DaysOverdue
		}
		return report.Rows[i].Document.Number < report.Rows[j].Document.Number
	})
	return report
}

func bucketFor(days int) string {
	switch {
	case days <= 0:
		return BucketCurrent
	case days <= 30:
		return Bucket1To30
	case days <= 60:
		return Bucket31To60
	case days <= 90:
		return Bucket61To90
	default:
		return BucketOver90
	}
}

func daysBetween(from, to time.Time) int {
	fromDay := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	toDay := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(toDay.Sub(fromDay).Hours() / 24)
}
