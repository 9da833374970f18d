package analysis

import "fmt"

// Kind classifies a single observation.
type Kind string

const (
	KindNormal Kind = "normal"
	KindHigh   Kind = "high"
	KindLow    Kind = "low"
)

// Method names the detection algorithm that produced a report.
type Method string

const (
	// MethodResidualIQR bounds the residuals (actual - predicted) with an IQR fence.
	MethodResidualIQR Method = "residual-iqr"
	// MethodValueIQR bounds the raw values with an IQR fence.
	MethodValueIQR Method = "value-iqr"
	// MethodSigma bounds the raw values at mean ± k standard deviations.
	MethodSigma Method = "sigma"
)

// Default thresholds for each method.
const (
	DefaultResidualThreshold = 0.5
	DefaultValueThreshold    = 1.5
	DefaultSigmaK            = 2.0
)

// ParseMethod validates a fallback method name from configuration.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case MethodResidualIQR, MethodValueIQR, MethodSigma:
		return Method(s), nil
	case "iqr":
		return MethodValueIQR, nil
	case "":
		return MethodSigma, nil
	}
	return "", fmt.Errorf("unknown anomaly method %q (use sigma or iqr)", s)
}

// Classification is the per-observation result of a detector.
type Classification struct {
	Index     int     `json:"index"`
	Value     float64 `json:"value"`
	IsAnomaly bool    `json:"isAnomaly"`
	Kind      Kind    `json:"kind"`
}

// Bounds is the closed interval outside of which a score is anomalous.
type Bounds struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

func (b Bounds) classify(score float64) Kind {
	switch {
	case score < b.Lower:
		return KindLow
	case score > b.Upper:
		return KindHigh
	}
	return KindNormal
}

// AnomalyReport aggregates classifications. Indices lists high anomalies first,
// then low anomalies, each group in positional order.
type AnomalyReport struct {
	Method          Method           `json:"method"`
	Threshold       float64          `json:"threshold"`
	Bounds          *Bounds          `json:"bounds,omitempty"`
	Classifications []Classification `json:"classifications"`
	Indices         []int            `json:"indices"`
	Count           int              `json:"count"`
	High            []Classification `json:"-"`
	Low             []Classification `json:"-"`
}

// NewAnomalyReport groups classifications into high and low anomalies.
func NewAnomalyReport(method Method, threshold float64, bounds *Bounds, cs []Classification) AnomalyReport {
	rep := AnomalyReport{
		Method:          method,
		Threshold:       threshold,
		Bounds:          bounds,
		Classifications: cs,
		Indices:         []int{},
	}
	for _, c := range cs {
		switch c.Kind {
		case KindHigh:
			rep.High = append(rep.High, c)
		case KindLow:
			rep.Low = append(rep.Low, c)
		}
	}
	for _, c := range rep.High {
		rep.Indices = append(rep.Indices, c.Index)
	}
	for _, c := range rep.Low {
		rep.Indices = append(rep.Indices, c.Index)
	}
	rep.Count = len(rep.Indices)
	return rep
}

// DetectResidual classifies actual values by their residual against predicted
// values. Both series are truncated to their common length; a nil prediction
// contributes a residual of 0. When no residual is strictly positive the
// report is empty.
func DetectResidual(actual []float64, predicted []*float64, threshold float64) AnomalyReport {
	n := len(actual)
	if len(predicted) < n {
		n = len(predicted)
	}
	residuals := make([]float64, n)
	anyPositive := false
	for i := 0; i < n; i++ {
		if predicted[i] != nil {
			residuals[i] = actual[i] - *predicted[i]
		}
		if residuals[i] > 0 {
			anyPositive = true
		}
	}
	if !anyPositive {
		return NewAnomalyReport(MethodResidualIQR, threshold, nil, nil)
	}
	b, _ := iqrBounds(residuals, threshold)
	cs := make([]Classification, n)
	for i := 0; i < n; i++ {
		cs[i] = classification(i, actual[i], b.classify(residuals[i]))
	}
	return NewAnomalyReport(MethodResidualIQR, threshold, &b, cs)
}

// DetectIQR classifies raw values against Q1 - threshold*IQR and Q3 + threshold*IQR.
// Fewer than four values collapse both quartiles onto neighbouring elements and
// the fence degenerates; that behaviour is kept as is.
func DetectIQR(values []float64, threshold float64) AnomalyReport {
	b, err := iqrBounds(values, threshold)
	if err != nil {
		return NewAnomalyReport(MethodValueIQR, threshold, nil, nil)
	}
	return classifyValues(MethodValueIQR, threshold, b, values)
}

// DetectSigma classifies raw values against mean ± k standard deviations.
func DetectSigma(values []float64, k float64) AnomalyReport {
	st, err := ComputeStats(values)
	if err != nil {
		return NewAnomalyReport(MethodSigma, k, nil, nil)
	}
	b := Bounds{Lower: st.Mean - k*st.StdDev, Upper: st.Mean + k*st.StdDev}
	return classifyValues(MethodSigma, k, b, values)
}

// DetectFallback runs the prediction-free detector selected by method.
func DetectFallback(method Method, values []float64, threshold float64) AnomalyReport {
	if method == MethodValueIQR {
		return DetectIQR(values, threshold)
	}
	return DetectSigma(values, threshold)
}

func classifyValues(method Method, threshold float64, b Bounds, values []float64) AnomalyReport {
	cs := make([]Classification, len(values))
	for i, v := range values {
		cs[i] = classification(i, v, b.classify(v))
	}
	return NewAnomalyReport(method, threshold, &b, cs)
}

func classification(i int, v float64, k Kind) Classification {
	return Classification{Index: i, Value: v, IsAnomaly: k != KindNormal, Kind: k}
}

func iqrBounds(values []float64, threshold float64) (Bounds, error) {
	q1, q3, err := Quartiles(values)
	if err != nil {
		return Bounds{}, err
	}
	iqr := q3 - q1
	return Bounds{Lower: q1 - threshold*iqr, Upper: q3 + threshold*iqr}, nil
}
