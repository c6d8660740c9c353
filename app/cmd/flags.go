package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"ctrlbx/app/service/filter"
	"ctrlbx/app/util"

	"github.com/elliotchance/pie/v2"
)

// parseTargets reads TYPE=N pairs into target balances.
func parseTargets(pairs []string) (map[string]int, error) {
	result := make(map[string]int, len(pairs))

	for _, pair := range pairs {
		tokenType, raw, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, util.InvalidArgument("token", pair)
		}

		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return nil, util.InvalidArgument("token", pair)
		}

		result[strings.ToUpper(strings.TrimSpace(tokenType))] = n
	}

	return result, nil
}

// selectOnly checks exactly values in group. No values leaves it untouched.
func selectOnly(group *filter.MultiSelect, values []string) {
	if len(values) == 0 {
		return
	}

	for _, opt := range group.Options() {
		if group.Checked(opt) != pie.Contains(values, opt) {
			group.Toggle(opt)
		}
	}
}

// confirm asks a yes/no question on out and reads the answer from in.
func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [s/N]: ", question)

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "s", "si", "sí", "y", "yes":
		return true
	default:
		return false
	}
}

func orDash(v string) string {
	if strings.TrimSpace(v) == "" {
		return "-"
	}

	return v
}
