package billing

// trendPoint is one (x, y) observation for a trendline.
type trendPoint struct {
	x, y float64
}

// trendline is y = slope*x + intercept.
type trendline struct {
	slope, intercept float64
}

func (l trendline) at(x float64) float64 {
	return l.slope*x + l.intercept
}

// fitTrendline performs an ordinary least squares fit. With fewer than two
// points, or no variation in x, the line is flat at the mean of y.
func fitTrendline(points []trendPoint) trendline {
	n := float64(len(points))
	if n == 0 {
		return trendline{}
	}

	var sumX, sumY, sumXY, sumXX float64
	for _, p := range points {
		sumX += p.x
		sumY += p.y
		sumXY += p.x * p.y
		sumXX += p.x * p.x
	}

	denom := n*sumXX - sumX*sumX
	if len(points) == 1 || denom == 0 {
		return trendline{intercept: sumY / n}
	}
	slope := (n*sumXY - sumX*sumY) / denom
	return trendline{
		slope:     slope,
		intercept: (sumY - slope*sumX) / n,
	}
}
