package config

// configSchema guards against typos and wrongly typed values in the pipeline
// configuration yaml before it gets decoded into PipelineConfig.
const configSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "modelName": { "type": "string", "minLength": 1 },
    "pythonVersion": { "type": "string" },
    "dockerRegistry": { "type": "string" },
    "dockerCredentialsId": { "type": "string" },
    "kubeCredentialsId": { "type": "string" },
    "namespace": { "type": "string" },
    "useHelm": { "type": "boolean" },
    "useMlflow": { "type": "boolean" },
    "runLoadTests": { "type": "boolean" },
    "runSecurityTests": { "type": "boolean" },
    "runSmokeTests": { "type": "boolean" },
    "autoRollback": { "type": "boolean" },
    "hasApi": { "type": "boolean" },
    "enablePrometheus": { "type": "boolean" },
    "enableGrafana": { "type": "boolean" },
    "enableAlerting": { "type": "boolean" },
    "enableLogging": { "type": "boolean" },
    "enableExplainability": { "type": "boolean" },
    "enableABTesting": { "type": "boolean" },
    "slackChannel": { "type": "string" },
    "slackWebhook": { "type": "string" },
    "emailRecipients": { "type": "string" },
    "teamsWebhook": { "type": "string" },
    "updateGitHubStatus": { "type": "boolean" },
    "githubRepo": { "type": "string" },
    "githubTokenId": { "type": "string" }
  }
}`
