package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"runtime"

	"golang.org/x/exp/rand"

	"github.com/Baxlan/burnet/data"
	"github.com/Baxlan/burnet/ml"
)

func main() {
	csvPath := flag.String("csv", "", "dataset file; first -inputs columns are features, the rest are outputs")
	nbInputs := flag.Int("inputs", 1, "number of feature columns in the dataset")
	threads := flag.Int("threads", runtime.NumCPU(), "worker pool size")
	epochs := flag.Int("epochs", 200, "maximum number of epochs")
	seed := flag.Uint64("seed", 42, "random seed, 0 picks one from the clock")
	report := flag.String("report", "training.report", "training report path")
	model := flag.String("model", "", "save the trained weights here")
	flag.Parse()

	var dataset ml.Dataset
	var labels []string
	if *csvPath != "" {
		var err error
		dataset, labels, err = data.LoadCSV(*csvPath, *nbInputs)
		if err != nil {
			log.Fatal(err)
		}
	} else {
		dataset, labels = sineDataset(1000, *seed)
	}

	param := ml.DefaultNetworkParam()
	param.Seed = *seed
	param.Threads = *threads
	param.Epochs = *epochs
	param.BatchSize = 10
	param.LearningRate = 0.01
	param.Patience = 10
	param.Optimizer = ml.OptimizerNadam
	param.Metric = ml.MetricL2
	param.Decay = ml.DecayExp
	param.LRDecayConstant = 0.005
	param.VerboseEvery = 10

	network := ml.NewNetwork(labels, param)
	defer network.Close()

	network.AddLayer(ml.Dense(32, ml.Activation("relu")))
	network.AddLayer(ml.Dense(32, ml.Activation("relu")))
	network.AddLayer(ml.Dense(len(dataset[0].Outputs), ml.Activation("linear")))
	network.SetData(dataset)

	converged, err := network.Learn()
	if err != nil {
		log.Fatal(err)
	}
	if !converged {
		log.Fatal("training diverged, try a lower learning rate")
	}

	if err := network.WriteInfo(*report); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("report written to %s\n", *report)

	if *model != "" {
		if err := network.SaveToFile(*model); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("model written to %s\n", *model)
	}

	probe := ml.NewMatrixFromSlice(1, 1, []float64{0.5})
	out, err := network.Process(probe)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("f(0.5) = %.4f (expected %.4f)\n", out.At(0, 0), math.Sin(0.5*math.Pi))
}

// sineDataset builds a noiseless sine regression task on [0, 2].
func sineDataset(n int, seed uint64) (ml.Dataset, []string) {
	rng := rand.New(rand.NewSource(seed + 1))
	dataset := make(ml.Dataset, n)
	for i := range dataset {
		x := 2 * rng.Float64()
		dataset[i] = ml.Sample{
			Inputs:  []float64{x},
			Outputs: []float64{math.Sin(x * math.Pi)},
		}
	}
	return dataset, []string{"sine"}
}
