package entity

// Box прямоугольник в пиксельных координатах кадра, правая и нижняя граница не входят
type Box struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Width возвращает ширину прямоугольника
func (b Box) Width() int { return b.X2 - b.X1 }

// Height возвращает высоту прямоугольника
func (b Box) Height() int { return b.Y2 - b.Y1 }

// Empty сообщает, что у прямоугольника нет площади
func (b Box) Empty() bool {
	return b.Width() <= 0 || b.Height() <= 0
}

// Clamp обрезает прямоугольник по размерам кадра
func (b Box) Clamp(width, height int) Box {
	return Box{
		X1: clampInt(b.X1, 0, width),
		Y1: clampInt(b.Y1, 0, height),
		X2: clampInt(b.X2, 0, width),
		Y2: clampInt(b.Y2, 0, height),
	}
}

// Detection один объект, найденный локализатором
type Detection struct {
	Class      int     `json:"class"`      // номер категории во внешней нумерации (COCO)
	Confidence float64 `json:"confidence"` // уверенность модели, [0,1]
	Box        Box     `json:"box"`
}

// SelectionPolicy правило выбора детекции для анализа
type SelectionPolicy string

const (
	SelectFirst             SelectionPolicy = "first"              // первая подходящая по порядку
	SelectHighestConfidence SelectionPolicy = "highest_confidence" // подходящая с максимальной уверенностью
)

// SelectTarget выбирает не более одной детекции целевого класса.
// При SelectFirst остальные подходящие детекции игнорируются, даже если уверенность у них выше.
func SelectTarget(detections []Detection, targetClass int, policy SelectionPolicy) (Detection, bool) {
	var (
		best  Detection
		found bool
	)
	for _, d := range detections {
		if d.Class != targetClass {
			continue
		}
		if policy != SelectHighestConfidence {
			return d, true
		}
		if !found || d.Confidence > best.Confidence {
			best = d
			found = true
		}
	}
	return best, found
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
