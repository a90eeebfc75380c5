package main

const (
	MsgNotJSON = "The request must be a JSON document with base64 \"body\" and \"name\" fields."

	MsgUploadRejected = "The uploaded file is not an allowed image type, or its content does not match its extension. Accepted types: .jpg, .png, .gif."

	MsgPayloadRejected = "The image body must be valid base64 with an encoded length between 512 bytes and 16 MiB."

	MsgImageRejected = "The image name must carry an allowed extension (.jpg, .png, .gif) matching the actual image content."

	MsgProcessingFailed = "The image was accepted but the detection engine could not process it."

	MsgEngineBusy = "All detection engine replicas are busy. Try again shortly."
)
