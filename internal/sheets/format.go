package sheets

import "strconv"

func formatPosition(i, n int) string {
	return strconv.Itoa(i) + "/" + strconv.Itoa(n)
}
