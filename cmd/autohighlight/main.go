// autohighlight collects word highlights from annotators, prepares token classification training
// data from them and evaluates or applies the trained model.
//
// Commands:
//
//	serve     HTTP API for the highlighting UI.
//	prepare   Align highlights onto subword labels and write train.parquet + training_args.json.
//	evaluate  Precision/recall/F1 of saved model logits against prepared labels.
//	predict   Highlight text with an ONNX token classification model.
//	export    Write collected highlights as JSON or CSV.
package main

import (
	"flag"
	"os"

	"k8s.io/klog/v2"
)

func main() {
	klog.InitFlags(nil)
	rootCmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)
	defer klog.Flush()
	if err := rootCmd.Execute(); err != nil {
		klog.Errorf("%+v", err)
		klog.Flush()
		os.Exit(1)
	}
}
