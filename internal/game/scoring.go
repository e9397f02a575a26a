package game

// Tally counts exact pegs and color-only pegs of guess against secret.
// A color is never matched more times than it occurs in either code.
func Tally(secret, guess Code) (exact, color int) {
	usedS := [Columns]bool{}
	usedG := [Columns]bool{}

	for i := 0; i < Columns; i++ {
		if secret[i] == guess[i] {
			exact++
			usedS[i] = true
			usedG[i] = true
		}
	}

	// counts for remaining
	cntS := make(map[Color]int, Columns)
	for i := 0; i < Columns; i++ {
		if !usedS[i] {
			cntS[secret[i]]++
		}
	}

	for i := 0; i < Columns; i++ {
		if usedG[i] {
			continue
		}
		if cntS[guess[i]] > 0 {
			cntS[guess[i]]--
			color++
		}
	}

	return exact, color
}

// Score returns the pegs for guess: all Exact first, then ColorMatch.
// Misses are not represented.
func Score(secret, guess Code) []PegResult {
	exact, color := Tally(secret, guess)

	res := make([]PegResult, 0, exact+color)
	for i := 0; i < exact; i++ {
		res = append(res, Exact)
	}
	for i := 0; i < color; i++ {
		res = append(res, ColorMatch)
	}
	return res
}

// Cracked reports whether results are a full set of exact pegs.
func Cracked(results []PegResult) bool {
	if len(results) != Columns {
		return false
	}
	for _, r := range results {
		if r != Exact {
			return false
		}
	}
	return true
}
