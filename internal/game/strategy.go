package game

// ProgramMove returns how many pebbles the program takes from s, given one
// random draw r. The result is always in [1, min(max, remaining)] when the
// pile is not empty.
//
// Easy picks uniformly in [1, max]. Hard plays the subtraction-game strategy:
// leave the user a multiple of max+1, and when that is impossible take max.
func ProgramMove(s GameState, r uint32) uint32 {
	if s.PebblesRemaining == 0 || s.MaxPebblesPerTurn == 0 {
		return 0
	}
	var m uint32
	switch s.Difficulty {
	case Hard:
		m = s.PebblesRemaining % (s.MaxPebblesPerTurn + 1)
		if m == 0 {
			m = s.MaxPebblesPerTurn
		}
	default:
		m = r%s.MaxPebblesPerTurn + 1
	}
	return min(m, s.PebblesRemaining)
}

