package publish

import (
	"context"
	"dph-tracker/internal/chrono"
	"dph-tracker/internal/history"
	"dph-tracker/internal/telemetry"
	"dph-tracker/internal/tracker"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jordan-wright/email"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

var testUpdate = tracker.Update{
	Date: "04-02",
	Records: []history.CountRecord{
		{Date: "04-02", Section: "deaths", RowName: "long beach", Count: 3},
		{Date: "04-02", Section: "deaths", RowName: "pasadena", Count: 1},
	},
	History: []history.CountRecord{
		{Date: "04-01", Section: "deaths", RowName: "long beach", Count: 2},
		{Date: "04-02", Section: "deaths", RowName: "long beach", Count: 3},
		{Date: "04-02", Section: "deaths", RowName: "pasadena", Count: 1},
	},
	CollectedAt: time.Date(2020, time.April, 2, 12, 20, 0, 0, chrono.LA()),
}

type fakePutter struct {
	objects map[string]string
	err     error
}

func (f fakePutter) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*params.Bucket+"/"+*params.Key] = string(body)
	return &s3.PutObjectOutput{}, nil
}

func TestS3Publish(t *testing.T) {
	putter := fakePutter{objects: map[string]string{}}
	publisher := newS3(putter, S3Options{Bucket: "tracker", Prefix: "la-county"}, telemetry.NewRecorderAPI())

	err := publisher.Publish(context.Background(), testUpdate)
	require.NoError(t, err)
	require.Len(t, putter.objects, 2)

	uploaded, err := history.ReadCSV(strings.NewReader(putter.objects["tracker/la-county/county_coronavirus_tracking.csv"]))
	require.NoError(t, err)
	require.Equal(t, testUpdate.History, uploaded)

	daily, err := history.ReadCSV(strings.NewReader(putter.objects["tracker/la-county/daily/04-02.csv"]))
	require.NoError(t, err)
	require.Equal(t, testUpdate.Records, daily)
}

func TestS3PublishFailure(t *testing.T) {
	tel := telemetry.NewRecorderAPI()
	publisher := newS3(fakePutter{err: errors.New("access denied")}, S3Options{Bucket: "tracker"}, tel)

	err := publisher.Publish(context.Background(), testUpdate)
	require.ErrorContains(t, err, "access denied")
	require.True(t, tel.HasReport("broken", report_s3_put))
}

func TestNewS3RequiresBucket(t *testing.T) {
	_, err := NewS3(context.Background(), S3Options{}, telemetry.NewRecorderAPI())
	require.Error(t, err)
}

type fakeWriter struct {
	messages *[]kafka.Message
	err      error
}

func (w fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	*w.messages = append(*w.messages, msgs...)
	return nil
}

func (w fakeWriter) Close() error {
	return nil
}

func TestKafkaPublish(t *testing.T) {
	var messages []kafka.Message
	tel := telemetry.NewRecorderAPI()
	publisher := newKafka(fakeWriter{messages: &messages}, "la-county", tel)

	err := publisher.Publish(context.Background(), testUpdate)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	require.Equal(t, "deaths/long beach", string(messages[0].Key))

	var decoded RecordMessage
	require.NoError(t, json.Unmarshal(messages[1].Value, &decoded))
	require.Equal(t, RecordMessage{
		Date:        "04-02",
		Section:     "deaths",
		RowName:     "pasadena",
		Count:       1,
		CollectedAt: "2020-04-02 12:20:00",
	}, decoded)

	err = publisher.Publish(context.Background(), tracker.Update{Date: "04-03"})
	require.NoError(t, err)
	require.Len(t, messages, 2)
}

func TestKafkaPublishFailure(t *testing.T) {
	tel := telemetry.NewRecorderAPI()
	publisher := newKafka(fakeWriter{err: errors.New("leader not available")}, "la-county", tel)

	err := publisher.Publish(context.Background(), testUpdate)
	require.ErrorContains(t, err, "leader not available")
	require.True(t, tel.HasReport("broken", report_kafka_write))
}

func TestNewKafkaValidation(t *testing.T) {
	_, err := NewKafka(KafkaOptions{Topic: "la-county"}, telemetry.NewRecorderAPI())
	require.Error(t, err)
	_, err = NewKafka(KafkaOptions{Brokers: []string{"localhost:9092"}}, telemetry.NewRecorderAPI())
	require.Error(t, err)
}

func TestEmailPublish(t *testing.T) {
	var sent []*email.Email
	send := func(mail *email.Email) error {
		sent = append(sent, mail)
		return nil
	}
	opts := SmtpOptions{
		Server:       "smtp.example.com",
		Port:         587,
		EmailAddress: "tracker@example.com",
		To:           []string{"epi@example.com"},
	}
	publisher := newEmail(opts, send, telemetry.NewRecorderAPI())

	err := publisher.Publish(context.Background(), testUpdate)
	require.NoError(t, err)
	require.Len(t, sent, 1)

	mail := sent[0]
	require.Equal(t, "L.A. County Tracker <tracker@example.com>", mail.From)
	require.Equal(t, []string{"epi@example.com"}, mail.To)
	require.Equal(t, "L.A. County counts for 04-02", mail.Subject)

	body := string(mail.Text)
	require.Contains(t, body, "Collected at 2020-04-02 12:20:00")
	require.Contains(t, body, "long beach")
	require.Contains(t, body, "pasadena")
}

func TestEmailPublishFailure(t *testing.T) {
	tel := telemetry.NewRecorderAPI()
	send := func(mail *email.Email) error {
		return errors.New("connection refused")
	}
	publisher := newEmail(SmtpOptions{Server: "smtp.example.com"}, send, tel)

	err := publisher.Publish(context.Background(), testUpdate)
	require.Error(t, err)
	require.True(t, tel.HasReport("broken", report_email_send))
}

func TestNewEmailValidation(t *testing.T) {
	_, err := NewEmail(SmtpOptions{Server: "smtp.example.com", EmailAddress: "a@example.com"}, telemetry.NewRecorderAPI())
	require.Error(t, err)
}
