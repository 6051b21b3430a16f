package output

import (
	"bytes"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// S3Store backs queues whose data_abspath is "s3://bucket/prefix", using
// the teacher's own direct dependency on aws-sdk-go. Credentials come from
// the SDK's default provider chain (env vars, shared config, instance
// role), the same way the teacher leaves credential discovery to the SDK
// rather than threading secrets through scheduler config.
type S3Store struct {
	svc *s3.S3
}

func NewS3Store() *S3Store {
	sess := session.Must(session.NewSessionWithOptions(session.Options{
		SharedConfigState: session.SharedConfigEnable,
	}))
	return &S3Store{svc: s3.New(sess)}
}

func (s *S3Store) Write(dataAbspath, jobID string, data []byte) error {
	bucket, prefix := splitBucketPrefix(dataAbspath, "s3://")
	_, err := s.svc.PutObject(&s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(outputPath(prefix, jobID)),
		Body:   bytes.NewReader(data),
	})
	return err
}

func (s *S3Store) Remove(dataAbspath, jobID string) error {
	bucket, prefix := splitBucketPrefix(dataAbspath, "s3://")
	_, err := s.svc.DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(outputPath(prefix, jobID)),
	})
	return err
}
