package ml

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// WriteInfo dumps the training history to a delimited text file: output
// labels, per-epoch train and validation losses, the test metric pair, the
// per-output metric breakdown on the test partition and the optimal epoch.
func (n *Network) WriteInfo(path string) error {
	if len(n.trainLosses) == 0 {
		return errors.New("no training history; call Learn before WriteInfo")
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "cannot create report file")
	}
	defer f.Close()

	w := bufio.NewWriter(f)

	writeLine(w, "labels:", n.labels...)
	writeLine(w, "train loss:", formatFloats(n.trainLosses)...)
	writeLine(w, "validation loss:", formatFloats(n.validLosses)...)
	writeLine(w, "metric:", n.param.Metric.name())
	writeLine(w, "test first metric:", formatFloats(n.testMetric)...)
	writeLine(w, "test second metric:", formatFloats(n.testSecondMetric)...)

	if n.testData.Rows() > 0 {
		predicted, err := n.forward(n.testData)
		if err != nil {
			return err
		}
		first, second := metricPerOutput(n.param.Metric, n.testReal, predicted, n.param.ClassValidity)
		writeLine(w, "output first metric:", formatFloats(first)...)
		writeLine(w, "output second metric:", formatFloats(second)...)
	}

	writeLine(w, "optimal epoch:", strconv.Itoa(n.optimalEpoch))

	if err := w.Flush(); err != nil {
		return errors.Wrap(err, "cannot write report file")
	}
	return nil
}

func writeLine(w *bufio.Writer, prefix string, fields ...string) {
	w.WriteString(prefix)
	if len(fields) > 0 {
		w.WriteByte(' ')
		w.WriteString(strings.Join(fields, ","))
	}
	w.WriteByte('\n')
}

func formatFloats(values []float64) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return out
}
