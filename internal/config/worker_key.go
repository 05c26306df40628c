package config

type WorkerKeyStruct struct {
	ResultIngestQueue string
}

var WorkerKey = &WorkerKeyStruct{
	ResultIngestQueue: "result_ingest_queue",
}
