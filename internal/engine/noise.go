package engine

import (
	"fmt"
	mathrand "math/rand"
	"strings"
)

func noiseVar(r *mathrand.Rand) string {
	return "_0x" + RandIdent(r, 6)
}

// noiseStatement returns a block-scoped statement with no observable effect.
func noiseStatement(r *mathrand.Rand) string {
	v := noiseVar(r)
	switch r.Intn(8) {
	case 0:
		return fmt.Sprintf("let %s=%d;", v, r.Intn(1000))
	case 1:
		return fmt.Sprintf("let %s=[%d,%d,%d].join('');", v, r.Intn(100), r.Intn(100), r.Intn(100))
	case 2:
		return fmt.Sprintf("let %s='%s'+'%s';", v, RandIdent(r, 4), RandIdent(r, 4))
	case 3:
		w := noiseVar(r)
		return fmt.Sprintf("let %s=%d,%s=%s*%d;", v, r.Intn(50)+1, w, v, r.Intn(9)+2)
	case 4:
		return fmt.Sprintf("let %s={%s:%d};", v, RandIdent(r, 3), r.Intn(100))
	case 5:
		return fmt.Sprintf("let %s=Math.sqrt(%d);", v, r.Intn(9999))
	case 6:
		return fmt.Sprintf("for(let %s=0;%s<0;%s++){}", v, v, v)
	default:
		return fmt.Sprintf("let %s=typeof %s;", v, noiseVar(r))
	}
}

// noiseBlock returns 0 to max noise statements.
func noiseBlock(r *mathrand.Rand, max int) string {
	if max < 1 {
		max = 1
	}
	count := r.Intn(max + 1)
	parts := make([]string, 0, count)
	for i := 0; i < count; i++ {
		parts = append(parts, noiseStatement(r))
	}
	return strings.Join(parts, "")
}

// opaqueFalse returns a condition that always evaluates to false.
func opaqueFalse(r *mathrand.Rand) string {
	switch r.Intn(6) {
	case 0:
		a := r.Intn(50) + 1
		return fmt.Sprintf("%d>%d", a, a+r.Intn(50)+1)
	case 1:
		s := RandIdent(r, 3)
		return fmt.Sprintf("'%s'.length!==3", s)
	case 2:
		n := r.Intn(1000) + 1
		return fmt.Sprintf("Math.abs(-%d)!==%d", n, n)
	case 3:
		return "typeof void 0!=='undefined'"
	case 4:
		a := r.Intn(40) + 2
		return fmt.Sprintf("%d*%d%%2===1", a, a*2)
	default:
		return "[]instanceof Object===false"
	}
}
