package ml

import "math"

// Accuracy is the fraction of probability predictions on the correct side
// of 0.5.
func Accuracy(probs []float64, y []int) float64 {
	if len(probs) == 0 || len(probs) != len(y) {
		return 0
	}
	correct := 0
	for i, p := range probs {
		pred := 0
		if p >= 0.5 {
			pred = 1
		}
		if pred == y[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(probs))
}

// AUC computes the rank-based area under the ROC curve. With a single
// represented class it returns the neutral 0.5.
func AUC(probs []float64, y []int) float64 {
	var pos, neg int
	for _, v := range y {
		if v == 1 {
			pos++
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return 0.5
	}

	// Mann-Whitney U: count positive/negative pairs ordered correctly.
	var u float64
	for i, pi := range probs {
		if y[i] != 1 {
			continue
		}
		for j, pj := range probs {
			if y[j] != 0 {
				continue
			}
			switch {
			case pi > pj:
				u += 1
			case pi == pj:
				u += 0.5
			}
		}
	}
	return u / float64(pos*neg)
}

// Confidence rescales distance from the uninformative midpoint to [0,1].
func Confidence(prob float64) float64 {
	c := math.Abs(prob-0.5) * 2
	if c > 1 {
		c = 1
	}
	return c
}

// ConfidenceCorrelation is the Pearson correlation between prediction
// confidence and correctness. A healthy model's most confident calls should
// be its most accurate; negative correlation is the inversion pathology.
func ConfidenceCorrelation(probs []float64, y []int) float64 {
	if len(probs) < 2 || len(probs) != len(y) {
		return 0
	}
	conf := make([]float64, len(probs))
	correct := make([]float64, len(probs))
	for i, p := range probs {
		conf[i] = Confidence(p)
		pred := 0
		if p >= 0.5 {
			pred = 1
		}
		if pred == y[i] {
			correct[i] = 1
		}
	}
	return pearson(conf, correct)
}

// CalibrationError is the mean absolute gap between predicted probability
// and realized outcome rate across equal-width confidence buckets.
func CalibrationError(probs []float64, y []int, buckets int) float64 {
	if len(probs) == 0 || buckets <= 0 {
		return 0
	}
	sums := make([]float64, buckets)
	outcomes := make([]float64, buckets)
	counts := make([]int, buckets)
	for i, p := range probs {
		b := int(p * float64(buckets))
		if b >= buckets {
			b = buckets - 1
		}
		if b < 0 {
			b = 0
		}
		sums[b] += p
		outcomes[b] += float64(y[i])
		counts[b]++
	}
	var total float64
	used := 0
	for b := 0; b < buckets; b++ {
		if counts[b] == 0 {
			continue
		}
		n := float64(counts[b])
		total += math.Abs(sums[b]/n - outcomes[b]/n)
		used++
	}
	if used == 0 {
		return 0
	}
	return total / float64(used)
}

// ConfidenceInverted reports the failure mode where high-confidence (>0.7)
// predictions resolve worse than low-confidence (<0.3) ones.
func ConfidenceInverted(probs []float64, y []int) bool {
	var hiSum, loSum float64
	var hiN, loN int
	for i, p := range probs {
		pred := 0
		if p >= 0.5 {
			pred = 1
		}
		outcome := 0.0
		if pred == y[i] {
			outcome = 1
		}
		c := Confidence(p)
		if c > 0.7 {
			hiSum += outcome
			hiN++
		} else if c < 0.3 {
			loSum += outcome
			loN++
		}
	}
	if hiN == 0 || loN == 0 {
		return false
	}
	return hiSum/float64(hiN) < loSum/float64(loN)
}

func pearson(a, b []float64) float64 {
	n := float64(len(a))
	var sa, sb float64
	for i := range a {
		sa += a[i]
		sb += b[i]
	}
	ma, mb := sa/n, sb/n
	var cov, va, vb float64
	for i := range a {
		da, db := a[i]-ma, b[i]-mb
		cov += da * db
		va += da * da
		vb += db * db
	}
	if va < 1e-12 || vb < 1e-12 {
		return 0
	}
	return cov / math.Sqrt(va*vb)
}
