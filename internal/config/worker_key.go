package config

type WorkerKeyStruct struct {
	PersistProgressQueue string
	PurgeAudioQueue      string
}

var WorkerKey = &WorkerKeyStruct{
	PersistProgressQueue: "persist_progress_queue",
	PurgeAudioQueue:      "purge_audio_queue",
}
